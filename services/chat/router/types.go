// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package router maps free-text analytics questions to structured tool
// calls. The classifier output is untrusted; the validator is the trust
// boundary that normalizes, clamps, and authorizes every field before
// execution.
package router

// Exposed tool vocabulary. This is a closed set: any other name coming
// out of the classifier is rejected wholesale.
const (
	ToolGeneralQuery       = "general_query"
	ToolMetricsTop         = "metrics_top_categories"
	ToolRatingDistribution = "rating_distribution"
	ToolSentimentSummary   = "sentiment_summary"
	ToolCompareCategories  = "compare_categories"
)

// Sortable metric names for metrics_top_categories.
const (
	MetricReviewCount = "review_count"
	MetricNPS         = "nps"
	MetricAvgRating   = "avg_rating"
)

// Query types for general_query.
const (
	QueryCountCategories = "count_categories"
	QueryListCategories  = "list_categories"
	QueryCategoryInfo    = "category_info"
	QuerySummaryStats    = "summary_stats"
)

// Validator bounds and defaults.
const (
	TopNMin     = 1
	TopNMax     = 50
	TopNDefault = 15

	MaxReviewsMin     = 5
	MaxReviewsMax     = 200
	MaxReviewsDefault = 30
)

// Message is one prior conversation turn fed to the classifier.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall is the classifier's candidate output. Untrusted: the tool
// name, args, and categories may all be hallucinated.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Rationale string         `json:"rationale,omitempty"`
}

// ValidatedCall is a tool call every field of which has passed the
// validator. This is the only value ever handed to the executor.
//
// FallbackReason is user-presentable and set only when the validator
// rewrote the call; Rationale is classifier debug output and is never
// shown to the end user.
type ValidatedCall struct {
	Tool           string         `json:"tool"`
	Args           map[string]any `json:"args"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Rationale      string         `json:"-"`
}

// DefaultCall returns the safe default: a summary-stats general query.
func DefaultCall(reason string) ValidatedCall {
	return ValidatedCall{
		Tool:           ToolGeneralQuery,
		Args:           map[string]any{"query_type": QuerySummaryStats},
		FallbackReason: reason,
	}
}
