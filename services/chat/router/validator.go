// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"fmt"
	"math"
	"strings"
)

// Validate normalizes, clamps, and authorizes a candidate tool call
// against the user's allowed category set.
//
// Pure and total: for every possible input it returns a well-formed
// ValidatedCall and never panics. Unknown tools and unauthorized
// categories fall back rather than erroring, and access denials are
// phrased as denials, never as "category doesn't exist", so the
// response cannot leak which categories exist outside the user's
// grant.
func Validate(call ToolCall, allowed map[string]struct{}) ValidatedCall {
	out := func(v ValidatedCall) ValidatedCall {
		v.Rationale = call.Rationale
		return v
	}

	switch call.Tool {
	case ToolGeneralQuery:
		return out(validateGeneralQuery(call.Args, allowed))
	case ToolMetricsTop:
		return out(validateMetricsTop(call.Args))
	case ToolRatingDistribution:
		return out(validateRatingDistribution(call.Args, allowed))
	case ToolSentimentSummary:
		return out(validateSentimentSummary(call.Args, allowed))
	case ToolCompareCategories:
		return out(validateCompare(call.Args, allowed))
	default:
		return out(DefaultCall(
			"I couldn't map that request to a supported analysis, so here's an overview instead."))
	}
}

func validateGeneralQuery(args map[string]any, allowed map[string]struct{}) ValidatedCall {
	queryType, _ := stringArg(args, "query_type")
	switch queryType {
	case QueryCountCategories, QueryListCategories, QuerySummaryStats:
		return ValidatedCall{
			Tool: ToolGeneralQuery,
			Args: map[string]any{"query_type": queryType},
		}
	case QueryCategoryInfo:
		category, ok := stringArg(args, "category")
		if !ok {
			return ValidatedCall{
				Tool:           ToolGeneralQuery,
				Args:           map[string]any{"query_type": QuerySummaryStats},
				FallbackReason: "I need a category name for that, so here's an overview instead.",
			}
		}
		if _, member := allowed[category]; !member {
			return ValidatedCall{
				Tool:           ToolGeneralQuery,
				Args:           map[string]any{"query_type": QuerySummaryStats},
				FallbackReason: fmt.Sprintf("You don't have access to %q, so here's an overview instead.", category),
			}
		}
		return ValidatedCall{
			Tool: ToolGeneralQuery,
			Args: map[string]any{"query_type": QueryCategoryInfo, "category": category},
		}
	default:
		// Unknown query types coerce silently to summary stats.
		return ValidatedCall{
			Tool: ToolGeneralQuery,
			Args: map[string]any{"query_type": QuerySummaryStats},
		}
	}
}

func validateMetricsTop(args map[string]any) ValidatedCall {
	topN := TopNDefault
	if n, ok := intArg(args, "top_n"); ok && n >= TopNMin && n <= TopNMax {
		topN = n
	}

	metric, _ := stringArg(args, "metric")
	switch metric {
	case MetricReviewCount, MetricNPS, MetricAvgRating:
	default:
		metric = MetricReviewCount
	}

	return ValidatedCall{
		Tool: ToolMetricsTop,
		Args: map[string]any{"top_n": topN, "metric": metric},
	}
}

func validateRatingDistribution(args map[string]any, allowed map[string]struct{}) ValidatedCall {
	category, ok := stringArg(args, "category")
	if !ok {
		return metricsFallback("I need a category name for a rating breakdown, so here are the top categories instead.")
	}
	if _, member := allowed[category]; !member {
		return metricsFallback(fmt.Sprintf(
			"You don't have access to %q, so here are the top categories instead.", category))
	}
	return ValidatedCall{
		Tool: ToolRatingDistribution,
		Args: map[string]any{"category": category},
	}
}

func validateSentimentSummary(args map[string]any, allowed map[string]struct{}) ValidatedCall {
	category, ok := stringArg(args, "category")
	if !ok {
		return metricsFallback("I need a category name for a sentiment summary, so here are the top categories instead.")
	}
	if _, member := allowed[category]; !member {
		return metricsFallback(fmt.Sprintf(
			"You don't have access to %q, so here are the top categories instead.", category))
	}

	maxReviews := MaxReviewsDefault
	if n, ok := intArg(args, "max_reviews"); ok && n >= MaxReviewsMin && n <= MaxReviewsMax {
		maxReviews = n
	}

	return ValidatedCall{
		Tool: ToolSentimentSummary,
		Args: map[string]any{"category": category, "max_reviews": maxReviews},
	}
}

// validateCompare checks missing fields first, then equality, then set
// membership. The order matters: an equal pair downgrades to a single
// rating distribution before any access check names a category.
func validateCompare(args map[string]any, allowed map[string]struct{}) ValidatedCall {
	categoryA, okA := stringArg(args, "category_a")
	categoryB, okB := stringArg(args, "category_b")
	if !okA || !okB {
		return metricsFallback("I need two category names to compare, so here are the top categories instead.")
	}

	if categoryA == categoryB {
		return ValidatedCall{
			Tool:           ToolRatingDistribution,
			Args:           map[string]any{"category": categoryA},
			FallbackReason: fmt.Sprintf("Comparing %q with itself isn't meaningful, so here's its rating breakdown.", categoryA),
		}
	}

	if _, member := allowed[categoryA]; !member {
		return metricsFallback(fmt.Sprintf(
			"You don't have access to %q, so here are the top categories instead.", categoryA))
	}
	if _, member := allowed[categoryB]; !member {
		return metricsFallback(fmt.Sprintf(
			"You don't have access to %q, so here are the top categories instead.", categoryB))
	}

	return ValidatedCall{
		Tool: ToolCompareCategories,
		Args: map[string]any{"category_a": categoryA, "category_b": categoryB},
	}
}

func metricsFallback(reason string) ValidatedCall {
	return ValidatedCall{
		Tool:           ToolMetricsTop,
		Args:           map[string]any{"top_n": TopNDefault, "metric": MetricReviewCount},
		FallbackReason: reason,
	}
}

// stringArg extracts a trimmed, non-empty string argument.
func stringArg(args map[string]any, key string) (string, bool) {
	if args == nil {
		return "", false
	}
	raw, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// intArg extracts an integer argument. JSON decoding yields float64,
// so integral floats are accepted; fractional values are not.
func intArg(args map[string]any, key string) (int, bool) {
	if args == nil {
		return 0, false
	}
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
