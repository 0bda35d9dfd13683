// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelagic-ai/reviewdeck/pkg/logging"
)

// Provider serves the current dataset snapshot and reloads it when
// the source CSV changes on disk.
//
// Snapshots are immutable; readers hold whatever snapshot was current
// when their turn started, so a mid-turn reload never mutates data
// under them. Each successful reload bumps the snapshot version,
// which invalidates version-keyed caches downstream.
//
// Thread Safety: Provider is safe for concurrent use.
type Provider struct {
	path   string
	logger *logging.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
	version  uint64
}

// NewProvider loads the CSV at path and returns a ready Provider.
func NewProvider(path string, logger *logging.Logger) (*Provider, error) {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Provider{path: path, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Snapshot returns the current immutable snapshot.
func (p *Provider) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Reload re-reads the CSV and swaps in a new snapshot with a bumped
// version. On failure the previous snapshot stays active.
func (p *Provider) Reload() error {
	p.mu.Lock()
	nextVersion := p.version + 1
	p.mu.Unlock()

	result, err := LoadCSV(p.path, nextVersion)
	if err != nil {
		return fmt.Errorf("reload dataset: %w", err)
	}

	if len(result.MissingColumns) > 0 {
		p.logger.Warn("dataset missing expected columns",
			"missing", result.MissingColumns)
	}

	p.mu.Lock()
	p.version = nextVersion
	p.snapshot = result.Snapshot
	p.mu.Unlock()

	p.logger.Info("dataset loaded",
		"version", nextVersion,
		"rows", len(result.Snapshot.Reviews),
		"rows_dropped", result.RowsDropped,
	)
	return nil
}

// Watch reloads the dataset whenever the source file is written.
// Blocks until ctx is cancelled. Reload failures are logged and the
// previous snapshot stays active.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create dataset watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.path); err != nil {
		return fmt.Errorf("watch %s: %w", p.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := p.Reload(); err != nil {
					p.logger.Error("dataset reload failed", "error", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("dataset watcher error", "error", err)
		}
	}
}
