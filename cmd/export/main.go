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

// MailGuard — Archive Export Command
//
// Standalone CLI tool that dumps the classified message archive from
// PostgreSQL as JSON or CSV. Intended for offline analysis and dataset
// building.
//
// Usage:
//
//	go run ./cmd/export/ [--format json|csv] [--limit 1000] [--output emails.json]
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailguard/agent/internal/archive"
	"github.com/mailguard/agent/internal/config"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	formatFlag := flag.String("format", "json", "Output format: json or csv")
	limitFlag := flag.Int("limit", 0, "Maximum records to export (0 = all)")
	outputFlag := flag.String("output", "", "Output file (empty = stdout)")
	flag.Parse()

	if *formatFlag != "json" && *formatFlag != "csv" {
		fmt.Fprintln(os.Stderr, "Error: --format must be json or csv")
		flag.Usage()
		os.Exit(1)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		slog.Error("database.url is not configured; nothing to export")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// --- Connect to PostgreSQL ---
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	arc, err := archive.New(ctx, pool)
	if err != nil {
		slog.Error("failed to open archive", "error", err)
		os.Exit(1)
	}

	records, err := arc.List(ctx, *limitFlag)
	if err != nil {
		slog.Error("failed to list archived messages", "error", err)
		os.Exit(1)
	}
	slog.Info("archive loaded", "records", len(records))

	// --- Output ---
	var out io.Writer = os.Stdout
	if *outputFlag != "" {
		f, err := os.Create(*outputFlag)
		if err != nil {
			slog.Error("failed to create output file", "path", *outputFlag, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	switch *formatFlag {
	case "json":
		err = writeJSON(out, records)
	case "csv":
		err = writeCSV(out, records)
	}
	if err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}

	slog.Info("export complete", "records", len(records), "format", *formatFlag)
}

// exportRecord is the JSON row shape.
type exportRecord struct {
	MessageID string   `json:"message_id"`
	Sender    string   `json:"sender"`
	Subject   string   `json:"subject"`
	Snippet   string   `json:"snippet"`
	Body      string   `json:"body"`
	OCRUsed   bool     `json:"ocr_used"`
	Verdict   string   `json:"verdict"`
	Score     *float64 `json:"score"`
	Reasons   []string `json:"reasons"`
	CycleID   string   `json:"cycle_id"`
	CreatedAt string   `json:"created_at"`
}

func writeJSON(w io.Writer, records []archive.Record) error {
	rows := make([]exportRecord, 0, len(records))
	for _, r := range records {
		reasons := r.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		rows = append(rows, exportRecord{
			MessageID: r.MessageID,
			Sender:    r.Sender,
			Subject:   r.Subject,
			Snippet:   r.Snippet,
			Body:      r.Body,
			OCRUsed:   r.OCRUsed,
			Verdict:   r.Verdict,
			Score:     r.Score,
			Reasons:   reasons,
			CycleID:   r.CycleID,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeCSV(w io.Writer, records []archive.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"message_id", "sender", "subject", "snippet", "ocr_used",
		"verdict", "score", "cycle_id", "created_at",
	}); err != nil {
		return err
	}

	for _, r := range records {
		score := ""
		if r.Score != nil {
			score = strconv.FormatFloat(*r.Score, 'f', 4, 64)
		}
		if err := cw.Write([]string{
			r.MessageID, r.Sender, r.Subject, r.Snippet,
			strconv.FormatBool(r.OCRUsed),
			r.Verdict, score, r.CycleID,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
