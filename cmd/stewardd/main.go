// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the steward daemon. It loads
// configuration, sets up logging, and runs the orchestrator until signalled.
// Collaborator services (router, predictors, workflow engine, memory store)
// are registered by the embedding deployment; without them the orchestrator
// runs in fallback mode.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/stewardai/steward/internal/config"
	"github.com/stewardai/steward/internal/logging"
	"github.com/stewardai/steward/internal/orchestrator"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env overrides are optional; ignore a missing file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("Config file %s not found, using defaults", *configPath)
			cfg = config.Default()
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	logging.SetDebug(cfg.Debug)
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir, cfg.LogsMaxSizeMB); err != nil {
		log.Fatalf("Failed to configure log output: %v", err)
	}

	log.Infof("steward %s (built %s) starting", Version, BuildDate)

	svc := orchestrator.New(cfg, orchestrator.Collaborators{})
	if err := svc.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}
	if !svc.Ready() {
		log.Warn("Orchestrator running in degraded fallback mode")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		log.Errorf("Shutdown error: %v", err)
	}
}
