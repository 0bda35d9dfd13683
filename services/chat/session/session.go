// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session tracks the conversational view state: which chart is
// showing, the active top-N/metric selection, and any comparison pair.
package session

import (
	"fmt"

	"github.com/pelagic-ai/reviewdeck/services/chat/router"
)

// View bounds. The displayed top-N is clamped tighter than the
// validator accepts: a validated top_n of 1 still renders at least 5
// rows.
const (
	ViewTopNMin = 5
	ViewTopNMax = 50
)

// State is one session's view state. Mutated exclusively by validated
// tool calls of the matching kind; general_query and sentiment_summary
// never disturb it.
type State struct {
	TopN      int    `json:"top_n"`
	TopMetric string `json:"top_metric"`

	// ComparePair is the active ordered comparison pair, nil when no
	// comparison is showing.
	ComparePair *[2]string `json:"compare_pair,omitempty"`

	// RatingDistCategory is the category in the histogram panel, empty
	// when none is showing.
	RatingDistCategory string `json:"rating_dist_category,omitempty"`
}

// NewState returns the session defaults.
func NewState() State {
	return State{
		TopN:      router.TopNDefault,
		TopMetric: router.MetricReviewCount,
	}
}

// Equal reports whether two states describe the same view.
func (s State) Equal(other State) bool {
	if s.TopN != other.TopN || s.TopMetric != other.TopMetric ||
		s.RatingDistCategory != other.RatingDistCategory {
		return false
	}
	if (s.ComparePair == nil) != (other.ComparePair == nil) {
		return false
	}
	if s.ComparePair != nil && *s.ComparePair != *other.ComparePair {
		return false
	}
	return true
}

// ClearCompare drops the active comparison pair. Called when the pair
// becomes invalid mid-session, e.g. after an access change.
func (s *State) ClearCompare() {
	s.ComparePair = nil
}

// Apply transitions the state for one validated tool call and returns
// the new state. The input state is not mutated.
func Apply(s State, call router.ValidatedCall) State {
	switch call.Tool {
	case router.ToolMetricsTop:
		if n, ok := call.Args["top_n"].(int); ok {
			s.TopN = clampTopN(n)
		}
		if m, ok := call.Args["metric"].(string); ok {
			s.TopMetric = m
		}
		// Switching to the top-N view supersedes any comparison.
		s.ComparePair = nil

	case router.ToolRatingDistribution:
		if cat, ok := call.Args["category"].(string); ok {
			s.RatingDistCategory = cat
		}

	case router.ToolCompareCategories:
		a, okA := call.Args["category_a"].(string)
		b, okB := call.Args["category_b"].(string)
		if okA && okB {
			pair := [2]string{a, b}
			s.ComparePair = &pair
			// Keep the histogram panel synchronized with the
			// comparison.
			s.RatingDistCategory = a
		}
	}
	return s
}

func clampTopN(n int) int {
	if n < ViewTopNMin {
		return ViewTopNMin
	}
	if n > ViewTopNMax {
		return ViewTopNMax
	}
	return n
}

// Acknowledgment returns the short "already showing" text used in
// place of the generated narrative when a view tool call left the
// state unchanged.
func Acknowledgment(s State, tool string) string {
	switch tool {
	case router.ToolMetricsTop:
		return fmt.Sprintf(
			"Already up to date: showing the top %d categories by %s.",
			s.TopN, s.TopMetric)
	case router.ToolCompareCategories:
		if s.ComparePair != nil {
			return fmt.Sprintf("Still comparing %s and %s.",
				s.ComparePair[0], s.ComparePair[1])
		}
	case router.ToolRatingDistribution:
		if s.RatingDistCategory != "" {
			return fmt.Sprintf("Already showing the rating distribution for %s.",
				s.RatingDistCategory)
		}
	}
	return "Already up to date."
}
