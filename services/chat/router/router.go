// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	// maxAllowedCategories caps the category list in the prompt.
	maxAllowedCategories = 200

	// maxRecentMessages caps the conversation tail in the prompt.
	maxRecentMessages = 6

	classifyTimeout = 20 * time.Second
)

// ClassifyRequest is one classification input.
type ClassifyRequest struct {
	UserMessage       string
	AllowedCategories []string
	RecentMessages    []Message
}

// Classification is the classifier result plus cache provenance.
type Classification struct {
	Call     ToolCall
	CacheHit bool

	// Fallback is set when the external call failed and the safe
	// default candidate was substituted.
	Fallback bool
}

// ClassifierConfig tunes the classifier cache.
type ClassifierConfig struct {
	// CacheTTL is the time-to-live for cached classifications.
	// Default: 5 minutes.
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached entries.
	// Default: 1000.
	CacheSize int
}

// Classifier maps a user message to a candidate tool call via an LLM.
//
// Identical concurrent questions are coalesced through singleflight so
// a burst of the same query costs one model call. Results are cached
// with a TTL, keyed by the message and the allowed-category list, so a
// cached answer can never carry a category the current grant does not.
//
// The classifier never returns an error: any failure of the external
// call (timeout, malformed output, unknown shape) substitutes the safe
// default candidate so the turn always completes. Substituted defaults
// are never cached, so the next identical question retries the model.
//
// Thread Safety: safe for concurrent use.
type Classifier struct {
	client llm.Client
	logger *logging.Logger

	ttl      time.Duration
	maxLen   int
	mu       sync.Mutex
	cache    map[string]cachedClassification
	inFlight singleflight.Group
}

type cachedClassification struct {
	call     ToolCall
	cachedAt time.Time
}

// NewClassifier builds a Classifier over the given model client.
func NewClassifier(client llm.Client, cfg ClassifierConfig, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxLen := cfg.CacheSize
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &Classifier{
		client: client,
		logger: logger,
		ttl:    ttl,
		maxLen: maxLen,
		cache:  make(map[string]cachedClassification),
	}
}

// Classify returns a candidate tool call for the user message.
func (c *Classifier) Classify(ctx context.Context, req ClassifyRequest) Classification {
	tracer := otel.Tracer("reviewdeck/router")
	ctx, span := tracer.Start(ctx, "classifier.classify")
	defer span.End()

	key := cacheKey(req)

	if call, ok := c.lookup(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return Classification{Call: call, CacheHit: true}
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	type flightResult struct {
		call     ToolCall
		fallback bool
	}

	v, _, shared := c.inFlight.Do(key, func() (any, error) {
		call, fallback := c.classifyOnce(ctx, req)
		// A failed call is not cached: the safe default must not
		// outlive the outage that produced it.
		if !fallback {
			c.store(key, call)
		}
		return flightResult{call: call, fallback: fallback}, nil
	})

	res := v.(flightResult)
	// A coalesced caller shares the leader's result; report it as a
	// cache hit since no model call was made on its behalf.
	return Classification{Call: res.call, CacheHit: shared, Fallback: res.fallback}
}

func (c *Classifier) classifyOnce(ctx context.Context, req ClassifyRequest) (ToolCall, bool) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	prompt := buildClassifierPrompt(req)

	var raw string
	err := llm.Retry(ctx, llm.DefaultRetryConfig(),
		func(ctx context.Context, attempt int) error {
			out, genErr := c.client.Generate(ctx, prompt, llm.GenerationParams{
				Temperature: llm.FloatPtr(0),
				MaxTokens:   llm.IntPtr(300),
				JSONMode:    true,
			})
			if genErr != nil {
				return genErr
			}
			raw = out
			return nil
		})
	if err != nil {
		c.logger.Warn("classifier call failed, using safe default", "error", err)
		return defaultCandidate(), true
	}

	call, parseErr := parseToolCall(raw)
	if parseErr != nil {
		c.logger.Warn("classifier output unparseable, using safe default",
			"error", parseErr)
		return defaultCandidate(), true
	}
	return call, false
}

func defaultCandidate() ToolCall {
	return ToolCall{
		Tool: ToolGeneralQuery,
		Args: map[string]any{"query_type": QuerySummaryStats},
	}
}

func (c *Classifier) lookup(key string) (ToolCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return ToolCall{}, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		delete(c.cache, key)
		return ToolCall{}, false
	}
	return entry.call, true
}

func (c *Classifier) store(key string, call ToolCall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxLen {
		c.evictOldestLocked()
	}
	c.cache[key] = cachedClassification{
		call:     call,
		cachedAt: time.Now(),
	}
}

// evictOldestLocked removes the oldest entry. O(n) scan is acceptable
// at the default capacity.
func (c *Classifier) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.cache {
		if oldestKey == "" || entry.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}

// cacheKey hashes the message with the allowed-category list so a
// grant change cannot serve a stale classification.
func cacheKey(req ClassifyRequest) string {
	h := sha256.New()
	h.Write([]byte(req.UserMessage))
	h.Write([]byte{0})
	for _, cat := range req.AllowedCategories {
		h.Write([]byte(cat))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func buildClassifierPrompt(req ClassifyRequest) string {
	cats := req.AllowedCategories
	if len(cats) > maxAllowedCategories {
		cats = cats[:maxAllowedCategories]
	}
	recent := req.RecentMessages
	if len(recent) > maxRecentMessages {
		recent = recent[len(recent)-maxRecentMessages:]
	}

	var b strings.Builder
	b.WriteString("You route analytics questions about product reviews to one tool.\n")
	b.WriteString("Tools:\n")
	b.WriteString("- general_query: args {query_type: count_categories|list_categories|category_info|summary_stats, category?}\n")
	b.WriteString("- metrics_top_categories: args {top_n: int, metric: review_count|nps|avg_rating}\n")
	b.WriteString("- rating_distribution: args {category}\n")
	b.WriteString("- sentiment_summary: args {category, max_reviews?: int}\n")
	b.WriteString("- compare_categories: args {category_a, category_b}\n\n")

	b.WriteString("Categories available to this user:\n")
	for _, cat := range cats {
		b.WriteString("- ")
		b.WriteString(cat)
		b.WriteString("\n")
	}

	if len(recent) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintf(&b, "\nUser question: %s\n\n", req.UserMessage)
	b.WriteString(`Respond with a single JSON object: {"tool": "...", "args": {...}, "rationale": "..."}`)
	return b.String()
}

// parseToolCall decodes the model's JSON, tolerating code fences.
func parseToolCall(raw string) (ToolCall, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var call ToolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return ToolCall{}, fmt.Errorf("decode tool call: %w", err)
	}
	if call.Tool == "" {
		return ToolCall{}, fmt.Errorf("tool call missing tool name")
	}
	return call, nil
}
