// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"sort"
	"sync"

	"github.com/pelagic-ai/reviewdeck/services/analytics/dataset"
)

// Role is a user's access role.
type Role string

const (
	// RoleAdmin bypasses category filtering entirely.
	RoleAdmin Role = "admin"

	// RoleAnalyst sees only explicitly granted categories.
	RoleAnalyst Role = "analyst"
)

// View is the access-filtered slice of the dataset one user may see.
//
// Metrics and AllowedCategories already honor the MinReliableReviews
// policy: a granted category below the threshold is invisible to both
// the dashboard and chat routing. Reviews is restricted to the
// surviving categories so tool execution cannot leak hidden rows.
type View struct {
	Reviews           []dataset.Review
	Metrics           []CategoryMetrics
	AllowedCategories []string

	// DatasetVersion and AccessVersion identify the inputs this view
	// was computed from.
	DatasetVersion uint64
	AccessVersion  uint64
}

// HasCategory reports whether the category is visible in this view.
func (v *View) HasCategory(cat string) bool {
	for _, c := range v.AllowedCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// MetricsFor returns the metrics row for a category, if visible.
func (v *View) MetricsFor(cat string) (CategoryMetrics, bool) {
	for _, m := range v.Metrics {
		if m.Category == cat {
			return m, true
		}
	}
	return CategoryMetrics{}, false
}

// viewKey identifies a cached view.
//
// AccessVersion is part of the key rather than the allowed set itself:
// membership comparison alone cannot distinguish a no-op edit followed
// by a real edit that restores the same set, but the version bump can.
type viewKey struct {
	userID         string
	role           Role
	datasetVersion uint64
	accessVersion  uint64
}

// Filter computes access-filtered views with memoization.
//
// Thread Safety: Filter is safe for concurrent use.
type Filter struct {
	mu    sync.Mutex
	cache map[viewKey]*View

	// maxEntries bounds the memo; old entries are dropped wholesale
	// when exceeded, which is cheap and correct for a memo table.
	maxEntries int
}

// NewFilter returns a Filter with a bounded memo table.
func NewFilter() *Filter {
	return &Filter{
		cache:      make(map[viewKey]*View),
		maxEntries: 256,
	}
}

// ViewFor returns the dataset slice visible to the given user.
//
// Admins see every category; any other role sees only categories in
// the allowed set. Both paths then apply the MinReliableReviews
// policy. The result is memoized by (user, role, dataset version,
// access version), so an access change invalidates the cached view
// even when the resulting row set is coincidentally identical.
func (f *Filter) ViewFor(
	snap *dataset.Snapshot,
	userID string,
	role Role,
	allowed map[string]struct{},
	accessVersion uint64,
) *View {
	key := viewKey{
		userID:         userID,
		role:           role,
		datasetVersion: snap.Version,
		accessVersion:  accessVersion,
	}

	f.mu.Lock()
	if v, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return v
	}
	f.mu.Unlock()

	v := buildView(snap, role, allowed, accessVersion)

	f.mu.Lock()
	if len(f.cache) >= f.maxEntries {
		f.cache = make(map[viewKey]*View)
	}
	f.cache[key] = v
	f.mu.Unlock()

	return v
}

func buildView(
	snap *dataset.Snapshot,
	role Role,
	allowed map[string]struct{},
	accessVersion uint64,
) *View {
	var visible []dataset.Review
	if role == RoleAdmin {
		visible = snap.Reviews
	} else {
		visible = make([]dataset.Review, 0, len(snap.Reviews))
		for _, r := range snap.Reviews {
			if _, ok := allowed[r.Category]; ok {
				visible = append(visible, r)
			}
		}
	}

	metrics := FilterReliable(ComputeCategoryMetrics(visible))

	surviving := make(map[string]struct{}, len(metrics))
	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		surviving[m.Category] = struct{}{}
		names = append(names, m.Category)
	}
	sort.Strings(names)

	reviews := make([]dataset.Review, 0, len(visible))
	for _, r := range visible {
		if _, ok := surviving[r.Category]; ok {
			reviews = append(reviews, r)
		}
	}

	return &View{
		Reviews:           reviews,
		Metrics:           metrics,
		AllowedCategories: names,
		DatasetVersion:    snap.Version,
		AccessVersion:     accessVersion,
	}
}
