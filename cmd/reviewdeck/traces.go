// Copyright (C) 2025 Pelagic AI (dev@pelagic-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelagic-ai/reviewdeck/services/orchestrator"
	"github.com/pelagic-ai/reviewdeck/services/store"
	"github.com/spf13/cobra"
)

var tracesLimit int

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Print recent routing decision traces",
	Long: "Reads the embedded trace log directly and prints the most " +
		"recent routing decisions as JSON, newest first. The server " +
		"must not be running against the same data directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := orchestrator.LoadConfig(configPath)
		if err != nil {
			return err
		}

		dbCfg := store.DefaultConfig()
		dbCfg.Path = cfg.DataDir
		db, err := store.Open(dbCfg)
		if err != nil {
			return fmt.Errorf("open store at %s: %w", cfg.DataDir, err)
		}
		defer db.Close()

		records, err := store.NewTraceStore(db).Recent(context.Background(), tracesLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	tracesCmd.Flags().IntVar(&tracesLimit, "limit", 50,
		"maximum number of traces to print")
}
