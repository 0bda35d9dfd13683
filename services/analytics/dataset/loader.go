// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ExpectedColumns are the columns of the source review export. The
// loader reports which are missing or unexpected rather than failing,
// so a partial export still loads what it can.
var ExpectedColumns = []string{
	"id", "asins", "brand", "categories", "colors", "dateAdded", "dateUpdated",
	"dimension", "ean", "keys", "manufacturer", "manufacturerNumber", "name",
	"prices", "reviews.date", "reviews.doRecommend", "reviews.numHelpful",
	"reviews.rating", "reviews.sourceURLs", "reviews.text", "reviews.title",
	"reviews.userCity", "reviews.userProvince", "reviews.username", "sizes",
	"upc", "weight",
}

// LoadResult is the outcome of loading a review CSV.
type LoadResult struct {
	// Snapshot holds the cleaned, category-exploded reviews.
	Snapshot *Snapshot

	// MissingColumns are expected columns absent from the file.
	MissingColumns []string

	// ExtraColumns are file columns not in the expected set.
	ExtraColumns []string

	// RowsDropped counts raw rows discarded for missing rating or date.
	RowsDropped int
}

// LoadCSV reads a review export and returns the cleaned dataset.
//
// Each raw row explodes into one Review per valid category. Rows
// without a parseable rating or date are dropped and counted. The
// returned snapshot carries the given version.
func LoadCSV(path string, version uint64) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open review csv %s: %w", path, err)
	}
	defer f.Close()

	return loadCSV(f, version)
}

func loadCSV(r io.Reader, version uint64) (*LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; index map guards access

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}

	result := &LoadResult{
		Snapshot: &Snapshot{Version: version},
	}

	expected := make(map[string]struct{}, len(ExpectedColumns))
	for _, c := range ExpectedColumns {
		expected[c] = struct{}{}
		if _, ok := colIdx[c]; !ok {
			result.MissingColumns = append(result.MissingColumns, c)
		}
	}
	for _, c := range header {
		if _, ok := expected[c]; !ok {
			result.ExtraColumns = append(result.ExtraColumns, c)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := colIdx[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		rating, ok := ParseRating(field(row, "reviews.rating"))
		if !ok {
			result.RowsDropped++
			continue
		}
		date, ok := ParseDate(field(row, "reviews.date"))
		if !ok {
			result.RowsDropped++
			continue
		}

		categories := ExtractCategories(field(row, "categories"))
		if len(categories) == 0 {
			result.RowsDropped++
			continue
		}

		for _, cat := range categories {
			result.Snapshot.Reviews = append(result.Snapshot.Reviews, Review{
				ProductID:   field(row, "id"),
				ProductName: field(row, "name"),
				Category:    cat,
				Rating:      rating,
				ReviewDate:  date,
				ReviewText:  field(row, "reviews.text"),
				ReviewTitle: field(row, "reviews.title"),
			})
		}
	}

	return result, nil
}
