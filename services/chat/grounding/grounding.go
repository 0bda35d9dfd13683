// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package grounding appends deterministic evidence statements to a
// narrative, derived only from numeric fields already present in the
// tool result. Nothing here is generated; a malformed field skips its
// statement silently rather than erroring.
package grounding

import (
	"fmt"
	"math"
	"strings"

	"github.com/pelagic-ai/reviewdeck/services/chat/executor"
	"github.com/pelagic-ai/reviewdeck/services/chat/router"
)

// maxStatements caps the evidence appended to one narrative.
const maxStatements = 2

// Ground appends at most two evidence statements for the tool result.
// Pure post-processing over the narrative text; the input narrative is
// returned unchanged when no well-formed numeric evidence exists.
func Ground(narrative string, result executor.Result) string {
	if result.Err != "" {
		return narrative
	}

	statements := evidence(result)
	if len(statements) == 0 {
		return narrative
	}
	if len(statements) > maxStatements {
		statements = statements[:maxStatements]
	}

	return strings.TrimRight(narrative, " \n") + " " + strings.Join(statements, " ")
}

func evidence(result executor.Result) []string {
	var out []string

	switch result.Tool {
	case router.ToolMetricsTop:
		if total, ok := countField(result.Data, "total_reviews"); ok {
			out = append(out, fmt.Sprintf(
				"This ranking is backed by %d reviews.", total))
		}

	case router.ToolSentimentSummary:
		if analyzed, ok := countField(result.Data, "review_count_analyzed"); ok {
			out = append(out, fmt.Sprintf(
				"Sentiment drawn from %d analyzed reviews.", analyzed))
		}
		if hits, ok := countField(result.Data, "cache_hits"); ok && hits > 0 {
			out = append(out, fmt.Sprintf(
				"%d of them were served from previous analysis.", hits))
		}

	case router.ToolRatingDistribution:
		if total, ok := countField(result.Data, "total_reviews"); ok {
			out = append(out, fmt.Sprintf(
				"Based on %d reviews in this category.", total))
		}

	case router.ToolCompareCategories:
		totalA, okA := countField(result.Data, "total_reviews_a")
		totalB, okB := countField(result.Data, "total_reviews_b")
		if okA && okB {
			out = append(out, fmt.Sprintf(
				"Comparison covers %d and %d reviews respectively.", totalA, totalB))
		}

	case router.ToolGeneralQuery:
		if total, ok := countField(result.Data, "total_reviews"); ok {
			out = append(out, fmt.Sprintf(
				"Figures cover %d reviews in total.", total))
		}
		if count, ok := countField(result.Data, "review_count"); ok {
			out = append(out, fmt.Sprintf(
				"This category has %d reviews.", count))
		}
	}

	return out
}

// countField extracts a non-negative integral count. Absent, negative,
// non-finite, or non-integral values fail the lookup so the statement
// is skipped.
func countField(data map[string]any, key string) (int, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data[key].(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int64:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v < 0 {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
