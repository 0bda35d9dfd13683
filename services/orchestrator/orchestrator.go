// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator wires the review analytics service: dataset
// provider, embedded store, chat pipeline, and the HTTP surface.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pelagic-ai/reviewdeck/pkg/logging"
	"github.com/pelagic-ai/reviewdeck/services/analytics/dataset"
	"github.com/pelagic-ai/reviewdeck/services/chat"
	"github.com/pelagic-ai/reviewdeck/services/chat/executor"
	"github.com/pelagic-ai/reviewdeck/services/chat/router"
	"github.com/pelagic-ai/reviewdeck/services/llm"
	"github.com/pelagic-ai/reviewdeck/services/orchestrator/handlers"
	"github.com/pelagic-ai/reviewdeck/services/orchestrator/routes"
	"github.com/pelagic-ai/reviewdeck/services/sentiment"
	"github.com/pelagic-ai/reviewdeck/services/store"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Service is the orchestrator lifecycle contract. Run blocks; Router
// exposes the configured engine for integration tests.
type Service interface {
	Run() error
	Router() *gin.Engine
}

type service struct {
	config        Config
	logger        *logging.Logger
	router        *gin.Engine
	db            *store.DB
	provider      *dataset.Provider
	tracerCleanup func(context.Context)
	watchCancel   context.CancelFunc
}

// New builds a ready-to-run Service.
//
// client injects the model backend; pass nil to construct the OpenAI
// client from the environment.
func New(cfg Config, client llm.Client, logger *logging.Logger) (Service, error) {
	if logger == nil {
		logger = logging.New(logging.Config{
			Level:   logging.LevelInfo,
			LogDir:  cfg.LogDir,
			Service: "reviewdeck",
		})
	}
	cfg = applyConfigDefaults(cfg)

	s := &service{config: cfg, logger: logger}

	if cfg.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if client == nil {
		var err error
		client, err = llm.NewOpenAIClient(llm.OpenAIConfig{
			Model:             cfg.Model,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("initialize LLM client: %w", err)
		}
	}

	provider, err := dataset.NewProvider(cfg.DatasetPath, logger)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	s.provider = provider

	if cfg.WatchDataset {
		ctx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		go func() {
			if err := provider.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Error("dataset watcher stopped", "error", err)
			}
		}()
	}

	dbCfg := store.DefaultConfig()
	dbCfg.Path = cfg.DataDir
	dbCfg.Logger = logger.Slog()
	db, err := store.Open(dbCfg)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.db = db

	access := store.NewAccessStore(db)
	traces := store.NewTraceStore(db)
	sentimentSvc := sentiment.NewService(
		sentiment.NewAnalyzer(client, logger),
		store.NewSentimentCache(db),
		cfg.Model,
		logger,
	)

	pipeline := chat.NewPipeline(
		router.NewClassifier(client, router.ClassifierConfig{}, logger),
		provider,
		access,
		executor.New(sentimentSvc, logger),
		chat.NewLLMNarrator(client, logger),
		traces,
		logger,
	)

	s.initRouter(handlers.New(pipeline, access, traces, logger))
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("starting server", "port", s.config.Port)
	return s.router.Run(addr)
}

// Router returns the configured engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) initRouter(h *handlers.Handlers) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware("reviewdeck"))

	routes.Setup(s.router, h)
}

// initTracer sets up the OTLP trace exporter. Insecure gRPC is fine
// for the internal collector network.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("reviewdeck")))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)))

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := exporter.Shutdown(ctx); err != nil {
			s.logger.Error("OTLP exporter shutdown failed", "error", err)
		}
	}, nil
}

func (s *service) cleanup() {
	if s.watchCancel != nil {
		s.watchCancel()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

var _ Service = (*service)(nil)
