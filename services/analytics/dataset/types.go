// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dataset loads and cleans the product-review dataset.
//
// A raw CSV row carries one review and a comma-separated category
// string; loading explodes it into one Review per valid category.
// Every emitted Review is guaranteed to have a rating in [1,5], a
// parsed review date, and a category that passed validity rules.
package dataset

import "time"

// Review is one review observation for one category.
type Review struct {
	ProductID   string
	ProductName string
	Category    string
	Rating      float64
	ReviewDate  time.Time
	ReviewText  string
	ReviewTitle string
}

// Snapshot is an immutable view of the loaded dataset.
//
// Version increases on every successful reload and participates in
// downstream cache keys, so a reload invalidates filtered views and
// metrics even when the row set happens to be unchanged.
type Snapshot struct {
	// Version is a monotonic load counter, starting at 1.
	Version uint64

	// Reviews holds one row per (review, category) pair.
	Reviews []Review
}

// Categories returns the distinct category names in the snapshot.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range s.Reviews {
		if _, ok := seen[r.Category]; !ok {
			seen[r.Category] = struct{}{}
			out = append(out, r.Category)
		}
	}
	return out
}
