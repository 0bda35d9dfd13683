// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes registers the HTTP routes of the orchestrator.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pelagic-ai/reviewdeck/services/orchestrator/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup registers all routes on the engine.
func Setup(r *gin.Engine, h *handlers.Handlers) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/chat", h.Chat)
		v1.GET("/categories", h.Categories)
		v1.GET("/traces", h.Traces)

		users := v1.Group("/users")
		{
			users.PUT("/:id/categories", h.SetUserCategories)
			users.GET("/:id/access", h.UserAccess)
		}
	}
}
