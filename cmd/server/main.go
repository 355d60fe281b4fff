// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// MailGuard — Inbox Scan Agent
//
// Entry point for the agent. It:
//  1. Loads configuration from config.yaml
//  2. Connects to Redis (snapshots, verdict cache, notification queue)
//     and optionally PostgreSQL (classification archive)
//  3. Builds the mailbox identity and Gmail API client
//  4. Runs the periodic ingestion cycle: list, fetch, extract, OCR,
//     classify, diff, persist, notify
//  5. Serves the local HTTP API (on-demand classify, cycle trigger,
//     health, metrics) and the host UI WebSocket endpoint
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mailguard/agent/internal/archive"
	"github.com/mailguard/agent/internal/classifier"
	"github.com/mailguard/agent/internal/config"
	"github.com/mailguard/agent/internal/dedup"
	"github.com/mailguard/agent/internal/gmail"
	"github.com/mailguard/agent/internal/httpapi"
	"github.com/mailguard/agent/internal/ingest"
	"github.com/mailguard/agent/internal/models"
	"github.com/mailguard/agent/internal/notify"
	"github.com/mailguard/agent/internal/ocr"
	"github.com/mailguard/agent/internal/store"
	"github.com/mailguard/agent/internal/uiserver"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting MailGuard agent")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"list_limit", cfg.ListLimit,
		"poll_interval", cfg.PollInterval,
		"ocr_enabled", cfg.OCRAPIKey != "",
		"archive_enabled", cfg.DatabaseURL != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	st := store.New(rdb)
	if err := st.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Optional PostgreSQL archive ---
	var (
		pgPool *pgxpool.Pool
		arc    *archive.Archive
	)
	if cfg.DatabaseURL != "" {
		pgPool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to create Postgres pool", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if err := pgPool.Ping(ctx); err != nil {
			slog.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		arc, err = archive.New(ctx, pgPool)
		if err != nil {
			slog.Error("failed to initialise archive", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")
	}

	// --- Mailbox identity and client ---
	identity := gmail.NewIdentity(ctx, cfg.Mailbox)
	mailbox := gmail.NewClient(identity.HTTPClient(ctx), gmail.DefaultBaseURL, cfg.Mailbox.User)

	// --- OCR Enricher (no-op without an API key) ---
	enricher := ocr.NewEnricher(mailbox, cfg.OCREndpoint, cfg.OCRAPIKey)

	// --- Classifier ---
	remote := classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout)
	onDemand := classifier.NewOnDemand(remote, st, cfg.VerdictCacheTTL)

	// --- Notifications ---
	filter := dedup.NewFilter(rdb)
	publisher := notify.NewPublisher(rdb, cfg.NotifyQueue, filter)

	// --- Host UI sessions ---
	ui := uiserver.NewServer(st, cfg.ScanDebounce, cfg.ScanFallback)

	// --- Ingestion Orchestrator ---
	orchCfg := ingest.Config{
		Auth:       identity,
		Mailbox:    mailbox,
		Classifier: remote,
		Enricher:   enricher,
		Store:      st,
		Notifier:   publisher,
		ListLimit:  cfg.ListLimit,
		Interval:   cfg.PollInterval,
		OnSnapshot: func(_ *models.Snapshot) { ui.BroadcastRefresh() },
	}
	if arc != nil {
		orchCfg.Archiver = arc
	}
	orch := ingest.NewOrchestrator(orchCfg)

	// --- HTTP API + WebSocket ---
	var pgPinger httpapi.Pinger
	if pgPool != nil {
		pgPinger = pgPool
	}
	handler := httpapi.NewHandler(onDemand, orch, st, pgPinger)
	ready, err := httpapi.Serve(ctx, cfg.Port, handler, ui.ServeWS)
	if err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Start polling ---
	orch.Start(ctx)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()
	orch.Stop()
	rdb.Close()

	slog.Info("agent stopped")
}
