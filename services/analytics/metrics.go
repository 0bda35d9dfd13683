// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analytics computes per-category review statistics and
// enforces row-level category access on the dataset.
//
// Everything in this package is a pure function of its inputs, which
// makes results safely memoizable; the access filter's cache key
// includes both the dataset version and the user's access version.
package analytics

import (
	"sort"

	"github.com/pelagic-ai/reviewdeck/services/analytics/dataset"
)

// MinReliableReviews is the display policy threshold: categories with
// fewer reviews are statistically unreliable and hidden from every
// view, including the chat routing allowed-category list.
const MinReliableReviews = 10

// CategoryMetrics is one aggregated row of the metrics frame.
type CategoryMetrics struct {
	Category    string  `json:"category"`
	ReviewCount int     `json:"review_count"`
	AvgRating   float64 `json:"avg_rating"`
	NPS         float64 `json:"nps"`
}

// ComputeNPS returns the Net Promoter Score for a set of ratings:
// (%promoters − %detractors) × 100, where promoters rate ≥4 and
// detractors rate ≤2. Returns 0 and false for an empty input, since
// NPS is undefined without ratings.
func ComputeNPS(ratings []float64) (float64, bool) {
	if len(ratings) == 0 {
		return 0, false
	}

	var promoters, detractors int
	for _, r := range ratings {
		switch {
		case r >= 4:
			promoters++
		case r <= 2:
			detractors++
		}
	}

	total := float64(len(ratings))
	return (float64(promoters)/total - float64(detractors)/total) * 100.0, true
}

// ComputeCategoryMetrics aggregates reviews into one row per distinct
// category: review count, average rating, and NPS.
//
// Rows are sorted by review count descending, then average rating
// descending, then category name ascending for a stable order.
// Pure function of its input; no side effects.
func ComputeCategoryMetrics(reviews []dataset.Review) []CategoryMetrics {
	byCategory := make(map[string][]float64)
	for _, r := range reviews {
		byCategory[r.Category] = append(byCategory[r.Category], r.Rating)
	}

	out := make([]CategoryMetrics, 0, len(byCategory))
	for cat, ratings := range byCategory {
		var sum float64
		for _, v := range ratings {
			sum += v
		}
		nps, _ := ComputeNPS(ratings)
		out = append(out, CategoryMetrics{
			Category:    cat,
			ReviewCount: len(ratings),
			AvgRating:   sum / float64(len(ratings)),
			NPS:         nps,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ReviewCount != out[j].ReviewCount {
			return out[i].ReviewCount > out[j].ReviewCount
		}
		if out[i].AvgRating != out[j].AvgRating {
			return out[i].AvgRating > out[j].AvgRating
		}
		return out[i].Category < out[j].Category
	})

	return out
}

// FilterReliable drops rows below the MinReliableReviews threshold.
func FilterReliable(rows []CategoryMetrics) []CategoryMetrics {
	out := make([]CategoryMetrics, 0, len(rows))
	for _, row := range rows {
		if row.ReviewCount >= MinReliableReviews {
			out = append(out, row)
		}
	}
	return out
}

// SortByMetric returns a copy of rows sorted descending by the given
// metric name (review_count, nps, or avg_rating). Ties break by
// review count descending, then category name ascending. An unknown
// metric sorts by review count.
func SortByMetric(rows []CategoryMetrics, metric string) []CategoryMetrics {
	out := make([]CategoryMetrics, len(rows))
	copy(out, rows)

	value := func(m CategoryMetrics) float64 {
		switch metric {
		case "nps":
			return m.NPS
		case "avg_rating":
			return m.AvgRating
		default:
			return float64(m.ReviewCount)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		vi, vj := value(out[i]), value(out[j])
		if vi != vj {
			return vi > vj
		}
		if out[i].ReviewCount != out[j].ReviewCount {
			return out[i].ReviewCount > out[j].ReviewCount
		}
		return out[i].Category < out[j].Category
	})

	return out
}
