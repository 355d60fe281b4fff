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

// Package archive provides a Postgres-backed history of every classified
// message. Unlike the snapshot — which is overwritten each cycle — the
// archive accumulates, and feeds the export tool.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailguard/agent/internal/models"
)

// Record is one archived classified message.
type Record struct {
	ID        int64
	MessageID string
	Sender    string
	Subject   string
	Snippet   string
	Body      string
	OCRUsed   bool
	Verdict   string
	Score     *float64
	Reasons   []string
	CycleID   string
	CreatedAt time.Time
}

// Archive provides insert and list operations for classified messages.
type Archive struct {
	pool *pgxpool.Pool
}

// New creates an archive backed by the given Postgres pool. It ensures the
// table exists on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Archive, error) {
	a := &Archive{pool: pool}
	if err := a.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	slog.Info("classified message archive initialised")
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS classified_messages (
			id          BIGSERIAL PRIMARY KEY,
			message_id  TEXT NOT NULL UNIQUE,
			sender      TEXT DEFAULT '',
			subject     TEXT DEFAULT '',
			snippet     TEXT DEFAULT '',
			body        TEXT DEFAULT '',
			ocr_used    BOOLEAN DEFAULT FALSE,
			verdict     TEXT DEFAULT 'unknown',
			score       DOUBLE PRECISION,
			reasons     JSONB DEFAULT '[]',
			cycle_id    TEXT DEFAULT '',
			created_at  TIMESTAMPTZ DEFAULT NOW(),
			updated_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_classified_verdict ON classified_messages(verdict);
		CREATE INDEX IF NOT EXISTS idx_classified_created ON classified_messages(created_at);
	`)
	return err
}

// Insert upserts one classified message keyed on message_id. Re-classifying
// the same message updates the stored verdict.
func (a *Archive) Insert(ctx context.Context, cm models.ClassifiedMessage, cycleID string) error {
	label := models.VerdictUnknown
	var score *float64
	reasons := []string{}
	if cm.Verdict != nil {
		label = cm.Verdict.Label
		score = cm.Verdict.Score
		reasons = cm.Verdict.Reasons
	}

	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO classified_messages
			(message_id, sender, subject, snippet, body, ocr_used, verdict, score, reasons, cycle_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id) DO UPDATE SET
			verdict    = EXCLUDED.verdict,
			score      = EXCLUDED.score,
			reasons    = EXCLUDED.reasons,
			cycle_id   = EXCLUDED.cycle_id,
			updated_at = NOW()
	`, cm.ID, cm.Sender, cm.Subject, cm.Snippet, cm.BodyText, cm.OCRUsed, label, score, reasonsJSON, cycleID)
	return err
}

// List returns archived messages, newest first, up to limit (0 = no limit).
func (a *Archive) List(ctx context.Context, limit int) ([]Record, error) {
	q := `
		SELECT id, message_id, sender, subject, snippet, body, ocr_used,
		       verdict, score, reasons, cycle_id, created_at
		FROM classified_messages
		ORDER BY created_at DESC
	`
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = a.pool.Query(ctx, q+" LIMIT $1", limit)
	} else {
		rows, err = a.pool.Query(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var reasonsJSON []byte
		if err := rows.Scan(
			&r.ID, &r.MessageID, &r.Sender, &r.Subject, &r.Snippet, &r.Body,
			&r.OCRUsed, &r.Verdict, &r.Score, &reasonsJSON, &r.CycleID, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(reasonsJSON) > 0 {
			if err := json.Unmarshal(reasonsJSON, &r.Reasons); err != nil {
				return nil, fmt.Errorf("decode reasons for %s: %w", r.MessageID, err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
