// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the orchestrator.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/analytics"
	"github.com/pelagic-ai/reviewdeck/services/chat"
	"github.com/pelagic-ai/reviewdeck/services/chat/router"
	"github.com/pelagic-ai/reviewdeck/services/store"
)

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	pipeline *chat.Pipeline
	access   *store.AccessStore
	traces   *store.TraceStore
	logger   *logging.Logger
}

// New returns the handler set.
func New(pipeline *chat.Pipeline, access *store.AccessStore, traces *store.TraceStore, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handlers{pipeline: pipeline, access: access, traces: traces, logger: logger}
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatRequest struct {
	ConversationID string           `json:"conversation_id"`
	UserID         string           `json:"user_id" binding:"required"`
	Message        string           `json:"message" binding:"required"`
	Recent         []router.Message `json:"recent"`
}

// Chat processes one chat turn. The pipeline itself never fails a
// turn, so the only error surface here is request binding.
func (h *Handlers) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.pipeline.ProcessTurn(c.Request.Context(), chat.TurnRequest{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Message:        req.Message,
		Recent:         req.Recent,
	})
	c.JSON(http.StatusOK, resp)
}

// Categories returns the categories visible to a user.
func (h *Handlers) Categories(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	view := h.pipeline.ViewFor(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{
		"categories":      view.AllowedCategories,
		"metrics":         view.Metrics,
		"dataset_version": view.DatasetVersion,
		"access_version":  view.AccessVersion,
	})
}

type setCategoriesRequest struct {
	Role       string   `json:"role" binding:"omitempty,oneof=admin analyst"`
	Categories []string `json:"categories"`
}

// SetUserCategories replaces a user's grant, bumping the access
// version atomically with the category set.
func (h *Handlers) SetUserCategories(c *gin.Context) {
	userID := c.Param("id")

	var req setCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := analytics.Role(req.Role)
	if role == "" {
		role = analytics.RoleAnalyst
	}

	rec, err := h.access.Set(c.Request.Context(), userID, role, req.Categories)
	if err != nil {
		h.logger.Error("access update failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access update failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UserAccess returns a user's stored access record.
func (h *Handlers) UserAccess(c *gin.Context) {
	rec, err := h.access.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access read failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Traces returns the most recent routing decisions, newest first.
func (h *Handlers) Traces(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [1,1000]"})
			return
		}
		limit = n
	}

	records, err := h.traces.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trace read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": records, "count": len(records)})
}
