// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"math"
	"testing"

	"github.com/pelagic-ai/reviewdeck/services/analytics/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewsFor(cat string, ratings ...float64) []dataset.Review {
	out := make([]dataset.Review, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, dataset.Review{Category: cat, Rating: r})
	}
	return out
}

func TestComputeNPS_Boundary(t *testing.T) {
	// Two promoters (5,5), two detractors (1,1), one passive (3).
	nps, ok := ComputeNPS([]float64{5, 5, 1, 1, 3})
	require.True(t, ok)
	assert.InDelta(t, 0.0, nps, 1e-9, "promoters and detractors cancel out")
}

func TestComputeNPS_Empty(t *testing.T) {
	_, ok := ComputeNPS(nil)
	assert.False(t, ok, "NPS is undefined for zero ratings")
}

func TestComputeNPS_AllPromoters(t *testing.T) {
	nps, ok := ComputeNPS([]float64{4, 5, 4.5})
	require.True(t, ok)
	assert.InDelta(t, 100.0, nps, 1e-9)
}

func TestComputeCategoryMetrics_AggregationAndFilter(t *testing.T) {
	// 12 Books reviews: eight 5s, two 3s, two 1s. 5 Toys reviews: all 4s.
	reviews := append(
		reviewsFor("Books", 5, 5, 5, 5, 5, 5, 5, 5, 3, 3, 1, 1),
		reviewsFor("Toys", 4, 4, 4, 4, 4)...,
	)

	rows := FilterReliable(ComputeCategoryMetrics(reviews))

	require.Len(t, rows, 1, "Toys is below the 10-review threshold")
	books := rows[0]
	assert.Equal(t, "Books", books.Category)
	assert.Equal(t, 12, books.ReviewCount)
	assert.InDelta(t, 4.0, books.AvgRating, 1e-9)
	assert.InDelta(t, 50.0, books.NPS, 1e-9)
}

func TestComputeCategoryMetrics_SortOrder(t *testing.T) {
	reviews := append(
		reviewsFor("Small", 5, 5),
		append(
			reviewsFor("BigLow", 1, 1, 1),
			reviewsFor("BigHigh", 5, 5, 5)...,
		)...,
	)

	rows := ComputeCategoryMetrics(reviews)
	require.Len(t, rows, 3)
	// Count desc first, then avg rating desc within equal counts.
	assert.Equal(t, "BigHigh", rows[0].Category)
	assert.Equal(t, "BigLow", rows[1].Category)
	assert.Equal(t, "Small", rows[2].Category)
}

func TestSortByMetric(t *testing.T) {
	rows := []CategoryMetrics{
		{Category: "A", ReviewCount: 10, AvgRating: 3.0, NPS: 20},
		{Category: "B", ReviewCount: 20, AvgRating: 4.5, NPS: -10},
		{Category: "C", ReviewCount: 15, AvgRating: 4.0, NPS: 80},
	}

	byNPS := SortByMetric(rows, "nps")
	assert.Equal(t, []string{"C", "A", "B"},
		[]string{byNPS[0].Category, byNPS[1].Category, byNPS[2].Category})

	byRating := SortByMetric(rows, "avg_rating")
	assert.Equal(t, "B", byRating[0].Category)

	byCount := SortByMetric(rows, "review_count")
	assert.Equal(t, "B", byCount[0].Category)

	// Unknown metric falls back to review count, and the input order
	// is not mutated.
	unknown := SortByMetric(rows, "bogus")
	assert.Equal(t, "B", unknown[0].Category)
	assert.Equal(t, "A", rows[0].Category, "input must not be reordered")
}

func TestComputeCategoryMetrics_NoNaN(t *testing.T) {
	rows := ComputeCategoryMetrics(reviewsFor("X", 2, 4))
	require.Len(t, rows, 1)
	assert.False(t, math.IsNaN(rows[0].AvgRating))
	assert.False(t, math.IsNaN(rows[0].NPS))
}
