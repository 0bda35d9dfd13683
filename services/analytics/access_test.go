// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"testing"

	"github.com/pelagic-ai/reviewdeck/services/analytics/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(version uint64) *dataset.Snapshot {
	reviews := append(
		reviewsFor("Books", 5, 5, 5, 5, 5, 4, 4, 4, 3, 3, 2, 1),
		reviewsFor("Toys", 4, 4, 4, 4, 4)...,
	)
	reviews = append(reviews,
		reviewsFor("Electronics", 5, 5, 5, 4, 4, 4, 3, 3, 2, 2, 1)...)
	return &dataset.Snapshot{Version: version, Reviews: reviews}
}

func allowedSet(cats ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		out[c] = struct{}{}
	}
	return out
}

func TestViewFor_AdminSeesAllReliableCategories(t *testing.T) {
	f := NewFilter()
	v := f.ViewFor(testSnapshot(1), "alice", RoleAdmin, nil, 1)

	// Toys has only 5 reviews and is hidden even from admins.
	assert.Equal(t, []string{"Books", "Electronics"}, v.AllowedCategories)
	assert.True(t, v.HasCategory("Books"))
	assert.False(t, v.HasCategory("Toys"))
}

func TestViewFor_AnalystRestrictedToGrant(t *testing.T) {
	f := NewFilter()
	v := f.ViewFor(testSnapshot(1), "bob", RoleAnalyst,
		allowedSet("Books"), 1)

	assert.Equal(t, []string{"Books"}, v.AllowedCategories)
	for _, r := range v.Reviews {
		assert.Equal(t, "Books", r.Category)
	}

	_, ok := v.MetricsFor("Electronics")
	assert.False(t, ok, "ungranted category must not surface metrics")
}

func TestViewFor_GrantBelowThresholdInvisible(t *testing.T) {
	f := NewFilter()
	v := f.ViewFor(testSnapshot(1), "bob", RoleAnalyst,
		allowedSet("Toys"), 1)

	assert.Empty(t, v.AllowedCategories)
	assert.Empty(t, v.Metrics)
	assert.Empty(t, v.Reviews)
}

func TestViewFor_MemoizedByVersions(t *testing.T) {
	f := NewFilter()
	snap := testSnapshot(1)

	v1 := f.ViewFor(snap, "bob", RoleAnalyst, allowedSet("Books"), 1)
	v2 := f.ViewFor(snap, "bob", RoleAnalyst, allowedSet("Books"), 1)
	require.Same(t, v1, v2, "identical key must hit the memo")

	// Bumping the access version misses the memo even when the allowed
	// set is the same.
	v3 := f.ViewFor(snap, "bob", RoleAnalyst, allowedSet("Books"), 2)
	assert.NotSame(t, v1, v3)
	assert.Equal(t, v1.AllowedCategories, v3.AllowedCategories)

	// A new dataset version also misses.
	v4 := f.ViewFor(testSnapshot(2), "bob", RoleAnalyst, allowedSet("Books"), 2)
	assert.NotSame(t, v3, v4)
	assert.Equal(t, uint64(2), v4.DatasetVersion)
}

func TestViewFor_AccessRevocation(t *testing.T) {
	f := NewFilter()
	snap := testSnapshot(1)

	before := f.ViewFor(snap, "bob", RoleAnalyst,
		allowedSet("Books", "Electronics"), 1)
	require.True(t, before.HasCategory("Electronics"))

	after := f.ViewFor(snap, "bob", RoleAnalyst, allowedSet("Books"), 2)
	assert.False(t, after.HasCategory("Electronics"))
	for _, r := range after.Reviews {
		assert.NotEqual(t, "Electronics", r.Category)
	}
}
