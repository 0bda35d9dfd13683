// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sentiment analyzes review texts in batches through an LLM
// and aggregates the results behind a content-hash cache.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/llm"
)

const (
	// maxTextLen truncates each review before submission.
	maxTextLen = 1200

	// batchTimeout is the hard wall-clock bound per batch call.
	batchTimeout = 15 * time.Second

	// maxAttempts bounds retries of one batch call. Only transient
	// errors are retried.
	maxAttempts = 4

	// maxReasons caps the reason phrases kept per review.
	maxReasons = 3
)

// Sentiment labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// ReviewSentiment is the per-review analysis result.
type ReviewSentiment struct {
	Sentiment string
	Reasons   []string
}

// Analyzer submits review text batches to the model.
//
// A failed batch degrades to neutral/no-reasons for its reviews rather
// than failing the caller; the analyzer never returns an error.
type Analyzer struct {
	client llm.Client
	logger *logging.Logger
}

// NewAnalyzer returns an Analyzer over the given model client.
func NewAnalyzer(client llm.Client, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{client: client, logger: logger}
}

type batchItem struct {
	Idx       int      `json:"idx"`
	Sentiment string   `json:"sentiment"`
	Reasons   []string `json:"reasons"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

// AnalyzeBatch classifies the sentiment of each text. The result slice
// is positional: result[i] corresponds to texts[i]. Indices the model
// does not return, and whole-batch failures, come back neutral with no
// reasons.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string) []ReviewSentiment {
	out := make([]ReviewSentiment, len(texts))
	for i := range out {
		out[i] = ReviewSentiment{Sentiment: Neutral}
	}
	if len(texts) == 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	prompt := buildBatchPrompt(texts)

	cfg := llm.DefaultRetryConfig()
	cfg.MaxAttempts = maxAttempts

	var raw string
	err := llm.Retry(ctx, cfg, func(ctx context.Context, attempt int) error {
		resp, genErr := a.client.Generate(ctx, prompt, llm.GenerationParams{
			Temperature: llm.FloatPtr(0),
			JSONMode:    true,
		})
		if genErr != nil {
			return genErr
		}
		raw = resp
		return nil
	})
	if err != nil {
		a.logger.Warn("sentiment batch failed, defaulting to neutral",
			"batch_size", len(texts), "error", err)
		return out
	}

	var parsed batchResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		a.logger.Warn("sentiment batch output unparseable, defaulting to neutral",
			"error", err)
		return out
	}

	for _, item := range parsed.Results {
		if item.Idx < 0 || item.Idx >= len(texts) {
			continue
		}
		out[item.Idx] = ReviewSentiment{
			Sentiment: normalizeSentiment(item.Sentiment),
			Reasons:   normalizeReasons(item.Reasons),
		}
	}
	return out
}

func buildBatchPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Classify the sentiment of each product review below.\n")
	b.WriteString("For each review return its idx, a sentiment of positive, negative, or neutral, ")
	b.WriteString("and up to 3 short reason phrases.\n\n")

	for i, text := range texts {
		fmt.Fprintf(&b, "[%d] %s\n", i, Truncate(text))
	}

	b.WriteString("\nRespond with a single JSON object: ")
	b.WriteString(`{"results": [{"idx": 0, "sentiment": "positive", "reasons": ["build quality"]}, ...]}`)
	return b.String()
}

// Truncate bounds one review text to the submission limit, measured in
// runes so a multibyte character is never split mid-sequence.
func Truncate(text string) string {
	// Byte length within the limit implies the rune count is too.
	if len(text) <= maxTextLen {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxTextLen {
		return text
	}
	return string(runes[:maxTextLen])
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case Positive:
		return Positive
	case Negative:
		return Negative
	default:
		return Neutral
	}
}

// normalizeReasons lowercases, trims, and caps reason phrases so
// counting is case-insensitive across reviews.
func normalizeReasons(reasons []string) []string {
	out := make([]string, 0, maxReasons)
	for _, r := range reasons {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		out = append(out, r)
		if len(out) == maxReasons {
			break
		}
	}
	return out
}
