// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds orchestrator configuration.
type Config struct {
	// Port is the HTTP server port. Default: 12310.
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// DatasetPath is the review CSV to serve. Required.
	DatasetPath string `yaml:"dataset_path" validate:"required"`

	// DataDir is the embedded database directory. Default: ./data.
	DataDir string `yaml:"data_dir"`

	// Model is the OpenAI model name used for classification,
	// sentiment, and narration. Default: gpt-4o-mini.
	Model string `yaml:"model"`

	// RequestsPerSecond caps outbound model calls. Zero disables the
	// limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// OTelEndpoint is the OpenTelemetry collector endpoint. Tracing is
	// disabled when empty.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// GinMode sets the Gin framework mode: debug, release, or test.
	GinMode string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`

	// LogDir enables JSON file logging when set.
	LogDir string `yaml:"log_dir"`

	// WatchDataset reloads the dataset when the CSV changes on disk.
	WatchDataset bool `yaml:"watch_dataset"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return applyConfigDefaults(cfg), nil
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return cfg
}
