// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// categoryDenylist holds category strings that slipped through the
// source export but are not product categories.
var categoryDenylist = map[string]struct{}{
	"buy a kindle":  {},
	"amazon.co.uk":  {},
	"mazon.co.uk":   {},
}

// IsValidCategory reports whether a raw category string is usable.
//
// A category is valid when, after trimming and lower-casing, it is at
// least 3 runes long, contains at least one letter, is not a bare
// domain or URL (contains '.' with no spaces), and is not denylisted.
func IsValidCategory(cat string) bool {
	c := strings.ToLower(strings.TrimSpace(cat))
	if c == "" {
		return false
	}
	if _, blocked := categoryDenylist[c]; blocked {
		return false
	}
	if len([]rune(c)) < 3 {
		return false
	}

	hasLetter := false
	for _, r := range c {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}

	// Bare domains like "amazon.com" have a dot and no spaces.
	if strings.Contains(c, ".") && !strings.Contains(c, " ") {
		return false
	}

	return true
}

// ExtractCategories splits a comma-separated category field and keeps
// only valid, trimmed category names.
func ExtractCategories(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if IsValidCategory(part) {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return out
}

// ParseRating parses a rating value and reports whether it is a valid
// rating in [1,5]. Non-numeric and out-of-range values are dropped.
func ParseRating(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	if v < 1 || v > 5 {
		return 0, false
	}
	return v, true
}

// dateLayouts are the formats observed in the source export.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseDate parses a review date and reports whether parsing
// succeeded. Dates are normalized to UTC.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
