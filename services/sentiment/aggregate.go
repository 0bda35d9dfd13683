// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sentiment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/store"
	"golang.org/x/sync/errgroup"
)

const (
	// batchSize is the number of reviews per model call.
	batchSize = 10

	// maxParallelBatches bounds concurrent batch calls.
	maxParallelBatches = 4

	// topReasonsLimit caps the aggregated reason list.
	topReasonsLimit = 10
)

// ReasonCount is one aggregated reason phrase.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Summary is the aggregated result of a sentiment_summary call.
type Summary struct {
	ReviewCountAnalyzed   int            `json:"review_count_analyzed"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	TopReasons            []ReasonCount  `json:"top_reasons"`
	NewCacheRows          int            `json:"new_cache_rows"`
	CacheHits             int            `json:"cache_hits"`
}

// Service analyzes a set of review texts, serving repeated texts from
// the content-hash cache.
//
// Batches are independent and run in parallel; each reads immutable
// input text and upserts idempotently into the cache, so at-least-once
// execution is safe. A cache-served summary aggregates exactly the
// same per-review rows as the run that populated it, so repeated calls
// over the same texts are idempotent.
type Service struct {
	analyzer *Analyzer
	cache    *store.SentimentCache
	model    string
	logger   *logging.Logger
}

// NewService wires the analyzer to the cache. model labels cache rows
// so a model upgrade can be distinguished from a re-analysis.
func NewService(analyzer *Analyzer, cache *store.SentimentCache, model string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{analyzer: analyzer, cache: cache, model: model, logger: logger}
}

// Summarize analyzes up to maxReviews distinct review texts.
//
// Texts are deduplicated by content hash before the cap is applied, so
// duplicated reviews cost one analysis and one cache row. Cache misses
// are analyzed in parallel batches; failures degrade affected reviews
// to neutral rather than failing the call.
func (s *Service) Summarize(ctx context.Context, texts []string, maxReviews int) (Summary, error) {
	// Dedupe by content hash, preserving first-seen order.
	seen := make(map[string]struct{})
	var hashes []string
	textByHash := make(map[string]string)
	for _, text := range texts {
		h := store.ContentHash(text)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
		textByHash[h] = text
	}
	if maxReviews > 0 && len(hashes) > maxReviews {
		hashes = hashes[:maxReviews]
	}

	cached, err := s.cache.GetBatch(ctx, hashes)
	if err != nil {
		// A broken cache read degrades to a full re-analysis.
		s.logger.Warn("sentiment cache read failed", "error", err)
		cached = map[string]store.SentimentRecord{}
	}

	var misses []string
	for _, h := range hashes {
		if _, hit := cached[h]; !hit {
			misses = append(misses, h)
		}
	}

	results := make(map[string]ReviewSentiment, len(hashes))
	for h, rec := range cached {
		results[h] = ReviewSentiment{Sentiment: rec.Sentiment, Reasons: rec.Reasons}
	}

	newRows, err := s.analyzeMisses(ctx, misses, textByHash, results)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		ReviewCountAnalyzed:   len(hashes),
		SentimentDistribution: map[string]int{Positive: 0, Negative: 0, Neutral: 0},
		NewCacheRows:          newRows,
		CacheHits:             len(cached),
	}

	reasonCounts := make(map[string]int)
	for _, h := range hashes {
		r, ok := results[h]
		if !ok {
			r = ReviewSentiment{Sentiment: Neutral}
		}
		summary.SentimentDistribution[r.Sentiment]++
		for _, reason := range r.Reasons {
			reasonCounts[reason]++
		}
	}
	summary.TopReasons = topReasons(reasonCounts)

	return summary, nil
}

// analyzeMisses runs the uncached hashes through the model in parallel
// batches and upserts the results. Returns the number of rows newly
// written to the cache. mu guards results.
func (s *Service) analyzeMisses(
	ctx context.Context,
	misses []string,
	textByHash map[string]string,
	results map[string]ReviewSentiment,
) (int, error) {
	if len(misses) == 0 {
		return 0, nil
	}

	var mu sync.Mutex
	var newRows int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBatches)

	for start := 0; start < len(misses); start += batchSize {
		end := start + batchSize
		if end > len(misses) {
			end = len(misses)
		}
		batch := misses[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, h := range batch {
				texts[i] = textByHash[h]
			}

			analyzed := s.analyzer.AnalyzeBatch(gctx, texts)

			records := make([]store.SentimentRecord, len(batch))
			for i, h := range batch {
				records[i] = store.SentimentRecord{
					Hash:      h,
					Sentiment: analyzed[i].Sentiment,
					Reasons:   analyzed[i].Reasons,
					Model:     s.model,
					UpdatedAt: time.Now().UTC(),
				}
			}

			rows, err := s.cache.Put(gctx, records)
			if err != nil {
				// Best-effort persistence: the computed results still
				// serve this call.
				s.logger.Warn("sentiment cache write failed", "error", err)
				rows = 0
			}

			mu.Lock()
			newRows += rows
			for i, h := range batch {
				results[h] = analyzed[i]
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return newRows, nil
}

// topReasons returns the most frequent reasons, count descending with
// lexicographic tie-break so output is deterministic.
func topReasons(counts map[string]int) []ReasonCount {
	out := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if len(out) > topReasonsLimit {
		out = out[:topReasonsLimit]
	}
	return out
}
