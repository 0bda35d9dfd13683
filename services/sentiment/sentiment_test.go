// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/pelagic-ai/reviewdeck/services/llm"
	"github.com/pelagic-ai/reviewdeck/services/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM classifies any review containing "great" as positive and
// "awful" as negative, echoing back valid batch JSON.
type scriptedLLM struct {
	calls atomic.Int64
	fail  bool
}

var idxLine = regexp.MustCompile(`(?m)^\[(\d+)\] (.*)$`)

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	s.calls.Add(1)
	if s.fail {
		return "", errors.New("503 service unavailable")
	}

	var items []map[string]any
	for _, m := range idxLine.FindAllStringSubmatch(prompt, -1) {
		var idx int
		fmt.Sscanf(m[1], "%d", &idx)
		text := strings.ToLower(m[2])
		switch {
		case strings.Contains(text, "great"):
			items = append(items, map[string]any{
				"idx": idx, "sentiment": "positive", "reasons": []string{"Quality"},
			})
		case strings.Contains(text, "awful"):
			items = append(items, map[string]any{
				"idx": idx, "sentiment": "negative", "reasons": []string{"durability", "Price"},
			})
		default:
			// Leave the idx out: the caller must default it to neutral.
		}
	}

	buf, _ := json.Marshal(map[string]any{"results": items})
	return string(buf), nil
}

func newTestService(t *testing.T, client llm.Client) *Service {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(NewAnalyzer(client, nil), store.NewSentimentCache(db), "test-model", nil)
}

func TestAnalyzeBatch_MissingIndexDefaultsNeutral(t *testing.T) {
	a := NewAnalyzer(&scriptedLLM{}, nil)

	got := a.AnalyzeBatch(context.Background(), []string{
		"great product", "it exists", "awful build",
	})

	require.Len(t, got, 3)
	assert.Equal(t, Positive, got[0].Sentiment)
	assert.Equal(t, Neutral, got[1].Sentiment)
	assert.Empty(t, got[1].Reasons)
	assert.Equal(t, Negative, got[2].Sentiment)
	assert.Equal(t, []string{"durability", "price"}, got[2].Reasons,
		"reasons are lowercased")
}

func TestAnalyzeBatch_WholeBatchFailureIsNeutral(t *testing.T) {
	a := NewAnalyzer(&failThenNeverLLM{}, nil)

	got := a.AnalyzeBatch(context.Background(), []string{"a", "b"})
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, Neutral, r.Sentiment)
		assert.Empty(t, r.Reasons)
	}
}

// failThenNeverLLM always returns a non-retryable error.
type failThenNeverLLM struct{}

func (f *failThenNeverLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return "", errors.New("400 bad request")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 5000)
	assert.Len(t, Truncate(long), 1200)
	assert.Equal(t, "short", Truncate("short"))

	// Multibyte text is cut on a rune boundary, never mid-sequence.
	wide := strings.Repeat("日", 5000)
	cut := Truncate(wide)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 1200, utf8.RuneCountInString(cut))

	// A multibyte string whose rune count fits is untouched even though
	// its byte length exceeds the limit.
	fits := strings.Repeat("日", 1200)
	assert.Equal(t, fits, Truncate(fits))
}

func TestSummarize_DeduplicatesAndCaches(t *testing.T) {
	client := &scriptedLLM{}
	svc := newTestService(t, client)

	texts := []string{
		"great product", "GREAT PRODUCT  ", "awful thing", "it exists",
	}

	first, err := svc.Summarize(context.Background(), texts, 30)
	require.NoError(t, err)

	// Case/whitespace variants of the same text share one hash.
	assert.Equal(t, 3, first.ReviewCountAnalyzed)
	assert.Equal(t, 3, first.NewCacheRows)
	assert.Equal(t, 0, first.CacheHits)
	assert.Equal(t, 1, first.SentimentDistribution[Positive])
	assert.Equal(t, 1, first.SentimentDistribution[Negative])
	assert.Equal(t, 1, first.SentimentDistribution[Neutral])
}

func TestSummarize_CacheIdempotence(t *testing.T) {
	client := &scriptedLLM{}
	svc := newTestService(t, client)

	texts := []string{"great product", "awful thing", "it exists"}

	first, err := svc.Summarize(context.Background(), texts, 30)
	require.NoError(t, err)
	callsAfterFirst := client.calls.Load()

	second, err := svc.Summarize(context.Background(), texts, 30)
	require.NoError(t, err)

	// The second run is fully cache-served and aggregates identically.
	assert.Equal(t, callsAfterFirst, client.calls.Load(), "no new model calls")
	assert.Equal(t, 0, second.NewCacheRows)
	assert.Equal(t, 3, second.CacheHits)
	assert.Equal(t, first.SentimentDistribution, second.SentimentDistribution)
	assert.Equal(t, first.TopReasons, second.TopReasons)
	assert.Equal(t, first.ReviewCountAnalyzed, second.ReviewCountAnalyzed)
}

func TestSummarize_MaxReviewsCap(t *testing.T) {
	client := &scriptedLLM{}
	svc := newTestService(t, client)

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("great product number %d", i)
	}

	got, err := svc.Summarize(context.Background(), texts, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, got.ReviewCountAnalyzed)
	assert.Equal(t, 25, got.SentimentDistribution[Positive])
}

func TestSummarize_FailedBatchesDegradeToNeutral(t *testing.T) {
	svc := newTestService(t, &failThenNeverLLM{})

	got, err := svc.Summarize(context.Background(), []string{"great", "awful"}, 30)
	require.NoError(t, err, "a failed sub-call never fails the summary")
	assert.Equal(t, 2, got.SentimentDistribution[Neutral])
	assert.Empty(t, got.TopReasons)
}

func TestTopReasons_Deterministic(t *testing.T) {
	counts := map[string]int{
		"price": 3, "quality": 3, "shipping": 1, "battery": 5,
	}
	got := topReasons(counts)

	require.Len(t, got, 4)
	assert.Equal(t, ReasonCount{Reason: "battery", Count: 5}, got[0])
	// Equal counts tie-break lexicographically.
	assert.Equal(t, "price", got[1].Reason)
	assert.Equal(t, "quality", got[2].Reason)
}
