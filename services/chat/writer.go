// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chat assembles the turn pipeline: classify, validate,
// execute, update view state, narrate, ground, and trace.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/chat/executor"
	"github.com/pelagic-ai/reviewdeck/services/chat/router"
	"github.com/pelagic-ai/reviewdeck/services/llm"
)

// Narrator renders a tool result as a short natural-language answer.
type Narrator interface {
	Narrate(ctx context.Context, userMessage string, result executor.Result) string
}

// LLMNarrator writes the answer with a model, degrading to a
// deterministic template when the call fails. Narration is the last
// unreliable stage of a turn; it must always return some text.
type LLMNarrator struct {
	client llm.Client
	logger *logging.Logger
}

// NewLLMNarrator returns an LLMNarrator.
func NewLLMNarrator(client llm.Client, logger *logging.Logger) *LLMNarrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMNarrator{client: client, logger: logger}
}

// Narrate implements Narrator.
func (n *LLMNarrator) Narrate(ctx context.Context, userMessage string, result executor.Result) string {
	payload, err := json.Marshal(result.Data)
	if err != nil {
		return FallbackNarrative(result)
	}

	prompt := fmt.Sprintf(
		"Answer the user's question in two or three sentences using only the data below. "+
			"Do not invent numbers.\n\nQuestion: %s\n\nTool: %s\nData: %s",
		userMessage, result.Tool, payload)

	out, err := n.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.FloatPtr(0.3),
		MaxTokens:   llm.IntPtr(250),
	})
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			n.logger.Warn("narrator call failed, using template", "error", err)
		}
		return FallbackNarrative(result)
	}
	return strings.TrimSpace(out)
}

// FallbackNarrative is the deterministic answer used when the model
// cannot narrate.
func FallbackNarrative(result executor.Result) string {
	switch result.Tool {
	case router.ToolMetricsTop:
		metric, _ := result.Data["metric"].(string)
		return fmt.Sprintf("Here are the top categories by %s.", metric)
	case router.ToolRatingDistribution:
		category, _ := result.Data["category"].(string)
		return fmt.Sprintf("Here is the rating distribution for %s.", category)
	case router.ToolSentimentSummary:
		category, _ := result.Data["category"].(string)
		return fmt.Sprintf("Here is the sentiment summary for %s.", category)
	case router.ToolCompareCategories:
		return "Here is the side-by-side comparison."
	default:
		return "Here is an overview of your review data."
	}
}
