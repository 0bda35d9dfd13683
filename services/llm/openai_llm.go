// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const defaultModel = "gpt-4o-mini"

// OpenAIClient implements Client against the OpenAI chat API.
//
// The API key is held in a memguard enclave and only decrypted for the
// lifetime of SDK client construction. Requests pass through a token
// bucket limiter so a burst of chat turns cannot exhaust the account's
// rate budget.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *logging.Logger
}

// OpenAIConfig configures the OpenAI-backed client.
type OpenAIConfig struct {
	// Model defaults to gpt-4o-mini when empty.
	Model string

	// RequestsPerSecond caps the outbound request rate.
	// Zero means no limit.
	RequestsPerSecond float64

	// Burst is the limiter burst size; defaults to 1 when a rate is
	// set.
	Burst int
}

// NewOpenAIClient builds a client from the OPENAI_API_KEY environment
// variable, falling back to the container secret file.
func NewOpenAIClient(cfg OpenAIConfig, logger *logging.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = logging.Default()
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		raw, err := os.ReadFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("OPENAI_API_KEY not set and secret %s unreadable", secretPath)
		}
		apiKey = strings.TrimSpace(string(raw))
		logger.Info("read OpenAI API key from secret file")
	}

	// Move the key into an enclave and scrub the plaintext copy.
	enclave := memguard.NewEnclave([]byte(apiKey))
	apiKey = ""

	keyBuf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("open API key enclave: %w", err)
	}
	defer keyBuf.Destroy()

	model := cfg.Model
	if model == "" {
		model = defaultModel
		logger.Warn("model not configured, using default", "model", model)
	}

	c := &OpenAIClient{
		client: openai.NewClient(keyBuf.String()),
		model:  model,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger.Info("initialized OpenAI client", "model", model)
	return c, nil
}

// Generate implements the Client interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	if params.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	o.logger.Debug("received OpenAI response",
		"finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
