// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const sentimentPrefix = "sentiment/"

// ContentHash returns the cache key for a review text: sha256 of the
// trimmed, lowercased text, hex encoded. Two reviews differing only in
// surrounding whitespace or letter case share one cache row.
func ContentHash(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// SentimentRecord is one cached per-review analysis result.
type SentimentRecord struct {
	Hash      string    `json:"hash"`
	Sentiment string    `json:"sentiment"`
	Reasons   []string  `json:"reasons"`
	Model     string    `json:"model"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SentimentCache is the content-addressed store of per-review
// sentiment results.
//
// Thread Safety: safe for concurrent use. Writes are idempotent
// upserts, so two turns analyzing overlapping review sets can race
// without corrupting rows.
type SentimentCache struct {
	db *DB
}

// NewSentimentCache returns a SentimentCache over the shared database.
func NewSentimentCache(db *DB) *SentimentCache {
	return &SentimentCache{db: db}
}

func sentimentKey(hash string) []byte {
	return []byte(sentimentPrefix + hash)
}

// GetBatch returns the cached records for the given hashes. Missing
// hashes are simply absent from the result map.
func (c *SentimentCache) GetBatch(
	ctx context.Context,
	hashes []string,
) (map[string]SentimentRecord, error) {
	out := make(map[string]SentimentRecord, len(hashes))

	err := c.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		for _, h := range hashes {
			item, err := txn.Get(sentimentKey(h))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var rec SentimentRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out[h] = rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sentiment cache batch get: %w", err)
	}
	return out, nil
}

// Put upserts the given records and returns the number of hashes that
// were not previously cached.
func (c *SentimentCache) Put(
	ctx context.Context,
	records []SentimentRecord,
) (int, error) {
	var newRows int

	err := c.db.WithTxn(ctx, func(txn *badger.Txn) error {
		newRows = 0
		for _, rec := range records {
			key := sentimentKey(rec.Hash)
			_, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				newRows++
			} else if err != nil {
				return err
			}

			buf, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(key, buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sentiment cache put: %w", err)
	}
	return newRows, nil
}
