// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package executor runs validated tool calls against a user's
// access-filtered dataset view. Every tool is a read-only projection;
// nothing here mutates the dataset.
package executor

import (
	"context"
	"sort"

	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/analytics"
	"github.com/pelagic-ai/reviewdeck/services/chat/router"
	"github.com/pelagic-ai/reviewdeck/services/sentiment"
)

// Result is one tool execution outcome.
//
// Err carries a structured data-error message, e.g. a compared
// category that vanished from the visible set mid-session. The caller
// must treat it as "view state no longer valid" rather than displaying
// it verbatim.
type Result struct {
	Tool string         `json:"tool"`
	Data map[string]any `json:"data"`
	Err  string         `json:"error,omitempty"`
}

// SentimentService is the sentiment aggregation boundary.
type SentimentService interface {
	Summarize(ctx context.Context, texts []string, maxReviews int) (sentiment.Summary, error)
}

// RatingCount is one histogram bucket.
type RatingCount struct {
	Rating float64 `json:"rating"`
	Count  int     `json:"count"`
}

// Executor dispatches validated tool calls.
//
// Dispatch is strictly on the validated tool name; raw classifier
// output never reaches this layer.
type Executor struct {
	sentiment SentimentService
	logger    *logging.Logger
}

// New returns an Executor.
func New(sentimentSvc SentimentService, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{sentiment: sentimentSvc, logger: logger}
}

// Execute runs one validated call against the view.
func (e *Executor) Execute(ctx context.Context, call router.ValidatedCall, view *analytics.View) Result {
	switch call.Tool {
	case router.ToolGeneralQuery:
		return e.generalQuery(call, view)
	case router.ToolMetricsTop:
		return e.metricsTop(call, view)
	case router.ToolRatingDistribution:
		return e.ratingDistribution(call, view)
	case router.ToolSentimentSummary:
		return e.sentimentSummary(ctx, call, view)
	case router.ToolCompareCategories:
		return e.compare(call, view)
	default:
		// Unreachable for validated input; answer with the overview
		// rather than erroring.
		return e.generalQuery(router.DefaultCall(""), view)
	}
}

func (e *Executor) generalQuery(call router.ValidatedCall, view *analytics.View) Result {
	queryType, _ := call.Args["query_type"].(string)

	switch queryType {
	case router.QueryCountCategories:
		return Result{Tool: router.ToolGeneralQuery, Data: map[string]any{
			"query_type":     queryType,
			"category_count": len(view.AllowedCategories),
		}}

	case router.QueryListCategories:
		return Result{Tool: router.ToolGeneralQuery, Data: map[string]any{
			"query_type":     queryType,
			"categories":     view.AllowedCategories,
			"category_count": len(view.AllowedCategories),
		}}

	case router.QueryCategoryInfo:
		category, _ := call.Args["category"].(string)
		row, ok := view.MetricsFor(category)
		if !ok {
			// Visible at validation time but gone now; fall through to
			// the overview.
			return e.summaryStats(view)
		}
		return Result{Tool: router.ToolGeneralQuery, Data: map[string]any{
			"query_type":   queryType,
			"category":     row.Category,
			"review_count": row.ReviewCount,
			"avg_rating":   row.AvgRating,
			"nps":          row.NPS,
		}}

	default:
		return e.summaryStats(view)
	}
}

func (e *Executor) summaryStats(view *analytics.View) Result {
	var totalReviews int
	var ratingSum float64
	for _, r := range view.Reviews {
		totalReviews++
		ratingSum += r.Rating
	}
	avg := 0.0
	if totalReviews > 0 {
		avg = ratingSum / float64(totalReviews)
	}

	return Result{Tool: router.ToolGeneralQuery, Data: map[string]any{
		"query_type":     router.QuerySummaryStats,
		"category_count": len(view.AllowedCategories),
		"total_reviews":  totalReviews,
		"avg_rating":     avg,
	}}
}

func (e *Executor) metricsTop(call router.ValidatedCall, view *analytics.View) Result {
	topN, _ := call.Args["top_n"].(int)
	metric, _ := call.Args["metric"].(string)

	rows := analytics.SortByMetric(view.Metrics, metric)
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}

	var totalReviews int
	for _, row := range rows {
		totalReviews += row.ReviewCount
	}

	return Result{Tool: router.ToolMetricsTop, Data: map[string]any{
		"metric":        metric,
		"top_n":         topN,
		"rows":          rows,
		"total_reviews": totalReviews,
	}}
}

func (e *Executor) ratingDistribution(call router.ValidatedCall, view *analytics.View) Result {
	category, _ := call.Args["category"].(string)

	counts := make(map[float64]int)
	var total int
	for _, r := range view.Reviews {
		if r.Category == category {
			counts[r.Rating]++
			total++
		}
	}

	histogram := make([]RatingCount, 0, len(counts))
	for rating, count := range counts {
		histogram = append(histogram, RatingCount{Rating: rating, Count: count})
	}
	sort.Slice(histogram, func(i, j int) bool {
		return histogram[i].Rating < histogram[j].Rating
	})

	return Result{Tool: router.ToolRatingDistribution, Data: map[string]any{
		"category":      category,
		"histogram":     histogram,
		"total_reviews": total,
	}}
}

func (e *Executor) sentimentSummary(ctx context.Context, call router.ValidatedCall, view *analytics.View) Result {
	category, _ := call.Args["category"].(string)
	maxReviews, _ := call.Args["max_reviews"].(int)

	var texts []string
	for _, r := range view.Reviews {
		if r.Category == category && r.ReviewText != "" {
			texts = append(texts, r.ReviewText)
		}
	}

	summary, err := e.sentiment.Summarize(ctx, texts, maxReviews)
	if err != nil {
		// The aggregation itself fails closed; an error here is a
		// wiring problem. Still answer the turn.
		e.logger.Error("sentiment summarize failed", "error", err)
		summary = sentiment.Summary{
			SentimentDistribution: map[string]int{},
		}
	}

	return Result{Tool: router.ToolSentimentSummary, Data: map[string]any{
		"category":               category,
		"review_count_analyzed":  summary.ReviewCountAnalyzed,
		"sentiment_distribution": summary.SentimentDistribution,
		"top_reasons":            summary.TopReasons,
		"new_cache_rows":         summary.NewCacheRows,
		"cache_hits":             summary.CacheHits,
	}}
}

func (e *Executor) compare(call router.ValidatedCall, view *analytics.View) Result {
	categoryA, _ := call.Args["category_a"].(string)
	categoryB, _ := call.Args["category_b"].(string)

	rowA, okA := view.MetricsFor(categoryA)
	rowB, okB := view.MetricsFor(categoryB)
	if !okA || !okB {
		// One side vanished from the visible set, e.g. after an access
		// change mid-session. Structured error, never a panic.
		return Result{
			Tool: router.ToolCompareCategories,
			Err:  "comparison pair is no longer valid",
			Data: map[string]any{
				"category_a": categoryA,
				"category_b": categoryB,
			},
		}
	}

	return Result{Tool: router.ToolCompareCategories, Data: map[string]any{
		"category_a":      rowA,
		"category_b":      rowB,
		"total_reviews_a": rowA.ReviewCount,
		"total_reviews_b": rowB.ReviewCount,
	}}
}
