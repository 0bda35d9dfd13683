// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/pelagic-ai/reviewdeck/services/orchestrator"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := orchestrator.LoadConfig(configPath)
		if err != nil {
			return err
		}

		svc, err := orchestrator.New(cfg, nil, nil)
		if err != nil {
			return fmt.Errorf("initialize service: %w", err)
		}
		return svc.Run()
	},
}
