// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testAllowed = map[string]struct{}{
	"Electronics":    {},
	"Books":          {},
	"Home & Kitchen": {},
}

func TestValidate_UnknownToolFallsBack(t *testing.T) {
	got := Validate(ToolCall{Tool: "drop_tables", Args: map[string]any{}}, testAllowed)

	assert.Equal(t, ToolGeneralQuery, got.Tool)
	assert.Equal(t, QuerySummaryStats, got.Args["query_type"])
	assert.NotEmpty(t, got.FallbackReason)
}

func TestValidate_EmptyToolFallsBack(t *testing.T) {
	got := Validate(ToolCall{}, testAllowed)
	assert.Equal(t, ToolGeneralQuery, got.Tool)
	assert.NotEmpty(t, got.FallbackReason)
}

func TestValidate_TopNClamping(t *testing.T) {
	tests := []struct {
		name string
		topN any
		want int
	}{
		{"way too big", 999, TopNDefault},
		{"zero", 0, TopNDefault},
		{"in range", 30, 30},
		{"lower bound", 1, 1},
		{"upper bound", 50, 50},
		{"json float integral", float64(30), 30},
		{"json float fractional", 12.5, TopNDefault},
		{"non-numeric", "lots", TopNDefault},
		{"missing", nil, TopNDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{"metric": "nps"}
			if tt.topN != nil {
				args["top_n"] = tt.topN
			}
			got := Validate(ToolCall{Tool: ToolMetricsTop, Args: args}, testAllowed)
			assert.Equal(t, ToolMetricsTop, got.Tool)
			assert.Equal(t, tt.want, got.Args["top_n"])
		})
	}
}

func TestValidate_InvalidMetricDefaults(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolMetricsTop,
		Args: map[string]any{"top_n": 10, "metric": "stars"},
	}, testAllowed)
	assert.Equal(t, MetricReviewCount, got.Args["metric"])
	assert.Empty(t, got.FallbackReason)
}

func TestValidate_RatingDistributionAccessDenied(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolRatingDistribution,
		Args: map[string]any{"category": "Toys"},
	}, testAllowed)

	assert.Equal(t, ToolMetricsTop, got.Tool)
	assert.Contains(t, got.FallbackReason, "access")
	// Access denial must not claim the category doesn't exist.
	assert.NotContains(t, strings.ToLower(got.FallbackReason), "exist")
}

func TestValidate_RatingDistributionMissingCategory(t *testing.T) {
	got := Validate(ToolCall{Tool: ToolRatingDistribution, Args: nil}, testAllowed)
	assert.Equal(t, ToolMetricsTop, got.Tool)
	assert.Equal(t, TopNDefault, got.Args["top_n"])
	assert.NotEmpty(t, got.FallbackReason)
}

func TestValidate_RatingDistributionAllowed(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolRatingDistribution,
		Args: map[string]any{"category": "  Books  "},
	}, testAllowed)
	assert.Equal(t, ToolRatingDistribution, got.Tool)
	assert.Equal(t, "Books", got.Args["category"], "category is trimmed")
	assert.Empty(t, got.FallbackReason)
}

func TestValidate_EqualCompareDowngradesToDistribution(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolCompareCategories,
		Args: map[string]any{"category_a": "Electronics ", "category_b": " Electronics"},
	}, testAllowed)

	assert.Equal(t, ToolRatingDistribution, got.Tool)
	assert.Equal(t, "Electronics", got.Args["category"])
	assert.NotEmpty(t, got.FallbackReason)
}

func TestValidate_CompareCheckOrder(t *testing.T) {
	// Missing field wins over everything else.
	got := Validate(ToolCall{
		Tool: ToolCompareCategories,
		Args: map[string]any{"category_a": "Forbidden"},
	}, testAllowed)
	assert.Equal(t, ToolMetricsTop, got.Tool)
	assert.NotContains(t, got.FallbackReason, "Forbidden",
		"missing-field check precedes membership check")

	// An equal pair downgrades even when the category is not in the
	// allowed set: equality check precedes membership check.
	got = Validate(ToolCall{
		Tool: ToolCompareCategories,
		Args: map[string]any{"category_a": "Toys", "category_b": "Toys"},
	}, testAllowed)
	assert.Equal(t, ToolRatingDistribution, got.Tool)
	assert.Equal(t, "Toys", got.Args["category"])
}

func TestValidate_CompareAccessDenied(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolCompareCategories,
		Args: map[string]any{"category_a": "Books", "category_b": "Toys"},
	}, testAllowed)
	assert.Equal(t, ToolMetricsTop, got.Tool)
	assert.Contains(t, got.FallbackReason, "Toys")
}

func TestValidate_CompareValid(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolCompareCategories,
		Args: map[string]any{"category_a": "Books", "category_b": "Electronics"},
	}, testAllowed)
	assert.Equal(t, ToolCompareCategories, got.Tool)
	assert.Equal(t, "Books", got.Args["category_a"])
	assert.Equal(t, "Electronics", got.Args["category_b"])
	assert.Empty(t, got.FallbackReason)
}

func TestValidate_SentimentMaxReviewsClamp(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int
	}{
		{"missing", nil, MaxReviewsDefault},
		{"too small", 2, MaxReviewsDefault},
		{"too big", 5000, MaxReviewsDefault},
		{"in range", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{"category": "Books"}
			if tt.raw != nil {
				args["max_reviews"] = tt.raw
			}
			got := Validate(ToolCall{Tool: ToolSentimentSummary, Args: args}, testAllowed)
			assert.Equal(t, ToolSentimentSummary, got.Tool)
			assert.Equal(t, tt.want, got.Args["max_reviews"])
		})
	}
}

func TestValidate_SentimentAccessDenied(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolSentimentSummary,
		Args: map[string]any{"category": "Toys"},
	}, testAllowed)
	assert.Equal(t, ToolMetricsTop, got.Tool)
	assert.NotEmpty(t, got.FallbackReason)
}

func TestValidate_GeneralQueryCategoryInfo(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolGeneralQuery,
		Args: map[string]any{"query_type": "category_info", "category": "Books"},
	}, testAllowed)
	assert.Equal(t, QueryCategoryInfo, got.Args["query_type"])
	assert.Equal(t, "Books", got.Args["category"])

	// Unauthorized category downgrades to summary stats with a reason.
	got = Validate(ToolCall{
		Tool: ToolGeneralQuery,
		Args: map[string]any{"query_type": "category_info", "category": "Toys"},
	}, testAllowed)
	assert.Equal(t, QuerySummaryStats, got.Args["query_type"])
	assert.NotEmpty(t, got.FallbackReason)
}

func TestValidate_GeneralQueryUnknownTypeCoerces(t *testing.T) {
	got := Validate(ToolCall{
		Tool: ToolGeneralQuery,
		Args: map[string]any{"query_type": "weather_report"},
	}, testAllowed)
	assert.Equal(t, QuerySummaryStats, got.Args["query_type"])
	assert.Empty(t, got.FallbackReason, "unknown query types coerce silently")
}

func TestValidate_RationalePreserved(t *testing.T) {
	got := Validate(ToolCall{
		Tool:      ToolMetricsTop,
		Args:      map[string]any{"top_n": 5},
		Rationale: "user asked for top categories",
	}, testAllowed)
	assert.Equal(t, "user asked for top categories", got.Rationale)
}
