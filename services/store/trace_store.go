// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const tracePrefix = "trace/"

// TraceRecord captures one full turn for offline review: what the
// user asked, what the classifier proposed, what the validator let
// through, what the user was finally told, and the view state the
// turn left behind.
type TraceRecord struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Query          string         `json:"query"`
	Tool           string         `json:"tool"`
	Args           map[string]any `json:"args,omitempty"`
	ProposedTool   string         `json:"proposed_tool,omitempty"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	CacheHit       bool           `json:"cache_hit"`

	// Reply is the final text shown to the user, after narration,
	// grounding, and any fallback prefix.
	Reply string `json:"reply"`

	// ViewState is the session view state after this turn; the JSON
	// shape is owned by the session package.
	ViewState any `json:"view_state,omitempty"`

	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// TraceStore is the append-only decision trace log.
//
// Keys embed a nanosecond timestamp so iteration order is
// chronological; a UUID suffix keeps same-instant appends from
// colliding.
//
// Thread Safety: safe for concurrent use.
type TraceStore struct {
	db *DB
}

// NewTraceStore returns a TraceStore over the shared database.
func NewTraceStore(db *DB) *TraceStore {
	return &TraceStore{db: db}
}

func traceKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", tracePrefix, at.UnixNano(), id))
}

// Append writes one trace record. Fills in ID and CreatedAt when the
// caller left them zero.
func (s *TraceStore) Append(ctx context.Context, rec TraceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal trace record: %w", err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(traceKey(rec.CreatedAt, rec.ID), buf)
	})
	if err != nil {
		return fmt.Errorf("append trace record: %w", err)
	}
	return nil
}

// Recent returns up to limit trace records, newest first.
func (s *TraceStore) Recent(ctx context.Context, limit int) ([]TraceRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	var out []TraceRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(tracePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the whole prefix
		// range; 0xff sorts after every timestamp digit.
		seek := append([]byte(tracePrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(tracePrefix)); it.Next() {
			if len(out) >= limit {
				break
			}
			var rec TraceRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan trace records: %w", err)
	}
	return out, nil
}
