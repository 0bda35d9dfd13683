// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package grounding

import (
	"math"
	"strings"
	"testing"

	"github.com/pelagic-ai/reviewdeck/services/chat/executor"
	"github.com/pelagic-ai/reviewdeck/services/chat/router"
	"github.com/stretchr/testify/assert"
)

func TestGround_MetricsTop(t *testing.T) {
	got := Ground("Here are the top categories.", executor.Result{
		Tool: router.ToolMetricsTop,
		Data: map[string]any{"total_reviews": 1234},
	})
	assert.Equal(t, "Here are the top categories. This ranking is backed by 1234 reviews.", got)
}

func TestGround_SentimentTwoStatements(t *testing.T) {
	got := Ground("Mostly positive.", executor.Result{
		Tool: router.ToolSentimentSummary,
		Data: map[string]any{"review_count_analyzed": 30, "cache_hits": 12},
	})
	assert.Contains(t, got, "30 analyzed reviews")
	assert.Contains(t, got, "12 of them")
}

func TestGround_AtMostTwoStatements(t *testing.T) {
	got := Ground("Overview.", executor.Result{
		Tool: router.ToolGeneralQuery,
		Data: map[string]any{"total_reviews": 100, "review_count": 40},
	})
	// Two statements end in two extra sentences, never more.
	assert.Equal(t, 3, strings.Count(got, "."))
}

func TestGround_MalformedFieldsSkipSilently(t *testing.T) {
	tests := []struct {
		name string
		val  any
	}{
		{"missing", nil},
		{"negative", -5},
		{"non-integral", 12.5},
		{"nan", math.NaN()},
		{"infinite", math.Inf(1)},
		{"string", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]any{}
			if tt.val != nil {
				data["total_reviews"] = tt.val
			}
			got := Ground("Unchanged.", executor.Result{
				Tool: router.ToolMetricsTop,
				Data: data,
			})
			assert.Equal(t, "Unchanged.", got)
		})
	}
}

func TestGround_IntegralFloatAccepted(t *testing.T) {
	got := Ground("Ranking.", executor.Result{
		Tool: router.ToolMetricsTop,
		Data: map[string]any{"total_reviews": float64(42)},
	})
	assert.Contains(t, got, "42 reviews")
}

func TestGround_ErrorResultUntouched(t *testing.T) {
	got := Ground("Something went sideways.", executor.Result{
		Tool: router.ToolCompareCategories,
		Err:  "comparison pair is no longer valid",
		Data: map[string]any{"total_reviews_a": 10, "total_reviews_b": 20},
	})
	assert.Equal(t, "Something went sideways.", got)
}

func TestGround_CompareNeedsBothCounts(t *testing.T) {
	got := Ground("Compared.", executor.Result{
		Tool: router.ToolCompareCategories,
		Data: map[string]any{"total_reviews_a": 10},
	})
	assert.Equal(t, "Compared.", got)
}
