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
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pelagic-ai/reviewdeck/services/analytics"
)

const accessPrefix = "access/"

// AccessRecord is a user's persisted access grant.
//
// AccessVersion is a per-user epoch counter: every write bumps it, even
// when the category set is unchanged. Downstream caches key on it, so a
// revoke-then-restore cycle still invalidates cached views built under
// the intermediate grant.
type AccessRecord struct {
	UserID     string         `json:"user_id"`
	Role       analytics.Role `json:"role"`
	Categories []string       `json:"categories"`

	AccessVersion uint64    `json:"access_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CategorySet returns the allowed categories as a membership set.
func (r AccessRecord) CategorySet() map[string]struct{} {
	out := make(map[string]struct{}, len(r.Categories))
	for _, c := range r.Categories {
		out[c] = struct{}{}
	}
	return out
}

// AccessStore persists per-user access records.
//
// Thread Safety: safe for concurrent use; the version bump and the
// category write happen in one transaction, so readers never observe a
// new set under an old version.
type AccessStore struct {
	db *DB
}

// NewAccessStore returns an AccessStore over the shared database.
func NewAccessStore(db *DB) *AccessStore {
	return &AccessStore{db: db}
}

func accessKey(userID string) []byte {
	return []byte(accessPrefix + userID)
}

// Get returns the access record for a user. Unknown users get a zero
// record: analyst role, no categories, access version 0.
func (s *AccessStore) Get(ctx context.Context, userID string) (AccessRecord, error) {
	rec := AccessRecord{
		UserID: userID,
		Role:   analytics.RoleAnalyst,
	}

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(accessKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return AccessRecord{}, fmt.Errorf("get access record for %s: %w", userID, err)
	}
	return rec, nil
}

// Set replaces a user's role and allowed categories, bumping the access
// version in the same transaction. Returns the stored record.
func (s *AccessStore) Set(
	ctx context.Context,
	userID string,
	role analytics.Role,
	categories []string,
) (AccessRecord, error) {
	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)

	var rec AccessRecord
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var version uint64
		item, err := txn.Get(accessKey(userID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First write for this user.
		case err != nil:
			return err
		default:
			var prev AccessRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &prev)
			}); err != nil {
				return err
			}
			version = prev.AccessVersion
		}

		rec = AccessRecord{
			UserID:        userID,
			Role:          role,
			Categories:    sorted,
			AccessVersion: version + 1,
			UpdatedAt:     time.Now().UTC(),
		}

		buf, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(accessKey(userID), buf)
	})
	if err != nil {
		return AccessRecord{}, fmt.Errorf("set access record for %s: %w", userID, err)
	}
	return rec, nil
}
