// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/analytics"
	"github.com/pelagic-ai/reviewdeck/services/analytics/dataset"
	"github.com/pelagic-ai/reviewdeck/services/chat/executor"
	"github.com/pelagic-ai/reviewdeck/services/chat/grounding"
	"github.com/pelagic-ai/reviewdeck/services/chat/router"
	"github.com/pelagic-ai/reviewdeck/services/chat/session"
	"github.com/pelagic-ai/reviewdeck/services/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdeck_chat_turns_total",
		Help: "Chat turns processed, labeled by executed tool.",
	}, []string{"tool"})

	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviewdeck_chat_fallbacks_total",
		Help: "Turns where the validator or classifier rewrote the call.",
	})

	classifierCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviewdeck_classifier_cache_hits_total",
		Help: "Classifier results served from cache.",
	})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reviewdeck_chat_turn_duration_seconds",
		Help:    "End-to-end chat turn latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// TurnRequest is one user chat turn.
type TurnRequest struct {
	// ConversationID identifies the session; a new one is assigned
	// when empty.
	ConversationID string
	UserID         string
	Message        string
	Recent         []router.Message
}

// TurnResponse is the completed turn.
type TurnResponse struct {
	ConversationID string         `json:"conversation_id"`
	Reply          string         `json:"reply"`
	Tool           string         `json:"tool"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	State          session.State  `json:"state"`
}

// ToolExecutor runs one validated tool call against a user's view.
type ToolExecutor interface {
	Execute(ctx context.Context, call router.ValidatedCall, view *analytics.View) executor.Result
}

// Pipeline processes chat turns. Each turn runs sequentially per
// session: classify, validate, execute, update state, narrate, ground,
// trace. No stage error escapes to the caller; every turn produces a
// visible response.
type Pipeline struct {
	classifier *router.Classifier
	provider   *dataset.Provider
	filter     *analytics.Filter
	access     *store.AccessStore
	exec       ToolExecutor
	narrator   Narrator
	traces     *store.TraceStore
	sessions   *session.Manager
	logger     *logging.Logger
}

// NewPipeline wires the turn pipeline.
func NewPipeline(
	classifier *router.Classifier,
	provider *dataset.Provider,
	access *store.AccessStore,
	exec ToolExecutor,
	narrator Narrator,
	traces *store.TraceStore,
	logger *logging.Logger,
) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		classifier: classifier,
		provider:   provider,
		filter:     analytics.NewFilter(),
		access:     access,
		exec:       exec,
		narrator:   narrator,
		traces:     traces,
		sessions:   session.NewManager(),
		logger:     logger,
	}
}

// ProcessTurn handles one chat turn end to end.
func (p *Pipeline) ProcessTurn(ctx context.Context, req TurnRequest) TurnResponse {
	start := time.Now()
	defer func() { turnDuration.Observe(time.Since(start).Seconds()) }()

	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	// One active turn per session: the view state is not safe for
	// concurrent mutation.
	prevState, release := p.sessions.Acquire(req.ConversationID)
	defer release()

	view := p.ViewFor(ctx, req.UserID)

	classification := p.classifier.Classify(ctx, router.ClassifyRequest{
		UserMessage:       req.Message,
		AllowedCategories: view.AllowedCategories,
		RecentMessages:    req.Recent,
	})
	if classification.CacheHit {
		classifierCacheHits.Inc()
	}

	allowed := make(map[string]struct{}, len(view.AllowedCategories))
	for _, cat := range view.AllowedCategories {
		allowed[cat] = struct{}{}
	}
	validated := router.Validate(classification.Call, allowed)
	if validated.FallbackReason != "" || classification.Fallback {
		fallbacksTotal.Inc()
	}

	result := p.exec.Execute(ctx, validated, view)

	var reply string
	newState := prevState
	if result.Err != "" {
		// Data error: the stored view state references something no
		// longer visible. Clear it and answer plainly instead of
		// showing the error.
		newState.ClearCompare()
		reply = "That comparison isn't available anymore; one of the categories is no longer in your view. Ask for the top categories to get back on track."
	} else {
		newState = session.Apply(prevState, validated)
		if isViewTool(validated.Tool) && newState.Equal(prevState) {
			reply = session.Acknowledgment(newState, validated.Tool)
		} else {
			reply = p.narrator.Narrate(ctx, req.Message, result)
			reply = grounding.Ground(reply, result)
		}
	}

	if validated.FallbackReason != "" {
		reply = validated.FallbackReason + " " + reply
	}

	p.sessions.Update(req.ConversationID, newState)
	turnsTotal.WithLabelValues(validated.Tool).Inc()

	p.logTrace(req, classification, validated, reply, newState, start)

	return TurnResponse{
		ConversationID: req.ConversationID,
		Reply:          reply,
		Tool:           validated.Tool,
		FallbackReason: validated.FallbackReason,
		Data:           result.Data,
		State:          newState,
	}
}

// ViewFor resolves the user's access-filtered dataset view. A failed
// access read degrades to an empty analyst grant rather than failing
// the turn.
func (p *Pipeline) ViewFor(ctx context.Context, userID string) *analytics.View {
	rec, err := p.access.Get(ctx, userID)
	if err != nil {
		p.logger.Error("access record read failed, assuming empty grant",
			"user_id", userID, "error", err)
		rec = store.AccessRecord{UserID: userID, Role: analytics.RoleAnalyst}
	}

	return p.filter.ViewFor(
		p.provider.Snapshot(),
		userID,
		rec.Role,
		rec.CategorySet(),
		rec.AccessVersion,
	)
}

// logTrace appends the turn to the audit log, including the final
// reply text and the resulting view state so the record shows what
// the user was actually told. Fire-and-forget: the response is
// already finalized, so a failed write only logs.
func (p *Pipeline) logTrace(
	req TurnRequest,
	classification router.Classification,
	validated router.ValidatedCall,
	reply string,
	state session.State,
	start time.Time,
) {
	rec := store.TraceRecord{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Query:          req.Message,
		Tool:           validated.Tool,
		Args:           validated.Args,
		ProposedTool:   classification.Call.Tool,
		FallbackReason: validated.FallbackReason,
		CacheHit:       classification.CacheHit,
		Reply:          reply,
		ViewState:      state,
		LatencyMS:      time.Since(start).Milliseconds(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.traces.Append(ctx, rec); err != nil {
			p.logger.Warn("trace write failed", "error", err)
		}
	}()
}

func isViewTool(tool string) bool {
	switch tool {
	case router.ToolMetricsTop, router.ToolRatingDistribution, router.ToolCompareCategories:
		return true
	}
	return false
}
