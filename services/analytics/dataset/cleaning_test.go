// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"strings"
	"testing"
)

func TestIsValidCategory(t *testing.T) {
	tests := []struct {
		name string
		cat  string
		want bool
	}{
		{"normal category", "Electronics", true},
		{"with spaces", "  Home & Kitchen  ", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"too short", "ab", false},
		{"no letters", "123", false},
		{"bare domain", "amazon.com", false},
		{"url-ish", "www.example.org", false},
		{"dot with space ok", "Vol. 2 Accessories", true},
		{"denylisted", "Buy A Kindle", false},
		{"denylisted domain", "amazon.co.uk", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCategory(tt.cat); got != tt.want {
				t.Errorf("IsValidCategory(%q) = %v, want %v", tt.cat, got, tt.want)
			}
		})
	}
}

func TestExtractCategories(t *testing.T) {
	got := ExtractCategories("Electronics, ab, Buy a Kindle, Home & Kitchen,amazon.com")
	want := []string{"Electronics", "Home & Kitchen"}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("category[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"5", 5, true},
		{"1.0", 1, true},
		{"4.5", 4.5, true},
		{"0", 0, false},
		{"6", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseRating(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseRating(%q) = (%v, %v), want (%v, %v)",
				tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseDate(t *testing.T) {
	if _, ok := ParseDate("2017-03-21T00:00:00.000Z"); !ok {
		t.Error("RFC3339-with-millis date should parse")
	}
	if _, ok := ParseDate("2017-03-21"); !ok {
		t.Error("date-only should parse")
	}
	if _, ok := ParseDate("not a date"); ok {
		t.Error("garbage should not parse")
	}
	if _, ok := ParseDate(""); ok {
		t.Error("empty should not parse")
	}
}

func TestLoadCSVExplodesCategories(t *testing.T) {
	csvData := strings.Join([]string{
		"id,name,categories,reviews.date,reviews.rating,reviews.text,reviews.title",
		`p1,Widget,"Electronics,Gadgets",2020-01-02,5,great,Great`,
		`p2,Gizmo,Electronics,2020-01-03,3,ok,OK`,
		`p3,Broken,Electronics,2020-01-04,,no rating,None`,
		`p4,NoDate,Electronics,,4,no date,None`,
	}, "\n")

	result, err := loadCSV(strings.NewReader(csvData), 1)
	if err != nil {
		t.Fatalf("loadCSV: %v", err)
	}

	if len(result.Snapshot.Reviews) != 3 {
		t.Fatalf("expected 3 exploded rows, got %d", len(result.Snapshot.Reviews))
	}
	if result.RowsDropped != 2 {
		t.Errorf("RowsDropped = %d, want 2", result.RowsDropped)
	}
	if result.Snapshot.Version != 1 {
		t.Errorf("Version = %d, want 1", result.Snapshot.Version)
	}
	if len(result.MissingColumns) == 0 {
		t.Error("expected missing expected-columns to be reported")
	}

	cats := result.Snapshot.Categories()
	if len(cats) != 2 {
		t.Errorf("distinct categories = %v, want 2 entries", cats)
	}
}
