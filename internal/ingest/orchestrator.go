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

// Package ingest drives the ingestion and classification cycle: authenticate,
// list recent messages, fetch details, extract canonical text, enrich with
// OCR, classify, diff against the last-seen marker, persist the snapshot,
// and notify. Per-message work is sequential; a single message's failure
// never aborts the batch.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mailguard/agent/internal/extract"
	"github.com/mailguard/agent/internal/metrics"
	"github.com/mailguard/agent/internal/models"
)

// OCRSeparator precedes appended OCR text in the submitted body.
const OCRSeparator = "[OCR extraction from attachments]"

// Authenticator yields an access token for the mailbox, or an AuthError.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// MailboxClient is the mailbox data source. Implemented by gmail.Client.
type MailboxClient interface {
	ListRecent(ctx context.Context, limit int) ([]models.MessageRef, error)
	GetDetail(ctx context.Context, messageID string) (*models.Message, error)
}

// MessageClassifier scores one record. Never returns an error; failures are
// encoded as degraded verdicts.
type MessageClassifier interface {
	Classify(ctx context.Context, rec *models.ClassificationRecord) *models.Verdict
}

// OCREnricher recognises text in image attachments. Implemented by
// ocr.Enricher.
type OCREnricher interface {
	Enabled() bool
	Enrich(ctx context.Context, messageID string, images []models.MessagePart) []models.AttachmentText
}

// SnapshotStore persists the snapshot and the last-seen marker.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	LastSeen(ctx context.Context) (string, error)
	SetLastSeen(ctx context.Context, messageID string) error
}

// Notifier emits a fire-and-forget signal per newly seen message.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, cm models.ClassifiedMessage) error
}

// Archiver records every classified message for history/export. Optional.
type Archiver interface {
	Insert(ctx context.Context, cm models.ClassifiedMessage, cycleID string) error
}

// Config wires an Orchestrator.
type Config struct {
	Auth       Authenticator
	Mailbox    MailboxClient
	Classifier MessageClassifier
	Enricher   OCREnricher
	Store      SnapshotStore
	Notifier   Notifier
	Archiver   Archiver // nil disables archival
	ListLimit  int
	Interval   time.Duration

	// OnSnapshot is called after each cycle persists, with the fresh
	// snapshot. Used to nudge annotation sessions to re-scan.
	OnSnapshot func(snap *models.Snapshot)
}

// Orchestrator runs ingestion cycles on a timer and on demand.
type Orchestrator struct {
	cfg     Config
	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates an ingestion orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
}

// RunCycle performs one full ingestion pass and returns the resulting
// snapshot. Auth and listing failures abort the cycle; everything after
// that degrades per item.
func (o *Orchestrator) RunCycle(ctx context.Context) (*models.Snapshot, error) {
	start := time.Now()
	cycleID := uuid.New().String()

	if _, err := o.cfg.Auth.Token(ctx); err != nil {
		metrics.CyclesTotal.WithLabelValues("auth_error").Inc()
		slog.Error("cycle aborted: authentication failed", "cycle_id", cycleID, "error", err)
		return nil, err
	}

	refs, err := o.cfg.Mailbox.ListRecent(ctx, o.cfg.ListLimit)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("list_error").Inc()
		slog.Error("cycle aborted: listing failed", "cycle_id", cycleID, "error", err)
		return nil, err
	}

	snap := &models.Snapshot{
		CycleID:   cycleID,
		UpdatedAt: time.Now().UTC(),
	}

	for _, ref := range refs {
		cm, ok := o.processMessage(ctx, cycleID, ref.ID)
		if !ok {
			continue
		}
		snap.Messages = append(snap.Messages, cm)
	}

	// Diff against the marker before persisting, so the comparison sees the
	// previous cycle's value.
	marker, err := o.cfg.Store.LastSeen(ctx)
	if err != nil {
		slog.Warn("failed to read last-seen marker, treating as unset", "error", err)
		marker = ""
	}
	newMessages := newSince(snap.Messages, marker)

	o.persist(ctx, snap)

	// Notify oldest-new-first so the display surface sees them in arrival order.
	for i := len(newMessages) - 1; i >= 0; i-- {
		if err := o.cfg.Notifier.NotifyNewMessage(ctx, newMessages[i]); err != nil {
			slog.Error("notification failed", "message_id", newMessages[i].ID, "error", err)
		}
	}

	if len(newMessages) > 0 {
		if err := o.cfg.Store.SetLastSeen(ctx, snap.Messages[0].ID); err != nil {
			slog.Error("failed to advance last-seen marker", "error", err)
		}
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	slog.Info("ingestion cycle complete",
		"cycle_id", cycleID,
		"messages", len(snap.Messages),
		"new", len(newMessages),
		"duration", time.Since(start),
	)

	if o.cfg.OnSnapshot != nil {
		o.cfg.OnSnapshot(snap)
	}

	return snap, nil
}

// processMessage fetches, extracts, enriches, and classifies one message.
// Returns ok=false when the message should be skipped (detail fetch failed
// or the message disappeared).
func (o *Orchestrator) processMessage(ctx context.Context, cycleID, messageID string) (models.ClassifiedMessage, bool) {
	msg, err := o.cfg.Mailbox.GetDetail(ctx, messageID)
	if err != nil {
		slog.Warn("skipping message: detail fetch failed", "message_id", messageID, "error", err)
		return models.ClassifiedMessage{}, false
	}
	if msg == nil {
		return models.ClassifiedMessage{}, false
	}

	bodyText := extract.CanonicalText(&msg.Payload)

	var ocrTexts []models.AttachmentText
	if o.cfg.Enricher != nil && o.cfg.Enricher.Enabled() {
		images := extract.LocateImages(&msg.Payload)
		ocrTexts = o.cfg.Enricher.Enrich(ctx, msg.ID, images)
	}

	body, ocrUsed := AssembleBody(bodyText, msg.Snippet, ocrTexts)

	fetchedAt := time.Now().UTC()
	attachments := make([]string, 0, len(ocrTexts))
	for _, t := range ocrTexts {
		attachments = append(attachments, t.Text)
	}

	verdict := o.cfg.Classifier.Classify(ctx, &models.ClassificationRecord{
		MessageID:       msg.ID,
		Sender:          msg.Sender,
		Subject:         msg.Subject,
		Body:            body,
		AttachmentsText: attachments,
		FetchedAt:       fetchedAt.Format(time.RFC3339),
		ClientMeta: models.ClientMeta{
			Agent:   "mailguard-agent",
			Version: "1",
			CycleID: cycleID,
		},
	})
	metrics.MessagesClassified.WithLabelValues(verdict.Label).Inc()

	return models.ClassifiedMessage{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Subject:   msg.Subject,
		Snippet:   msg.Snippet,
		BodyText:  body,
		OCRUsed:   ocrUsed,
		FetchedAt: fetchedAt,
		Verdict:   verdict,
	}, true
}

// persist writes the snapshot and archives each message. Best-effort: a
// storage failure is logged, never rolled back — the in-memory results are
// still returned to the caller.
func (o *Orchestrator) persist(ctx context.Context, snap *models.Snapshot) {
	if err := o.cfg.Store.SaveSnapshot(ctx, snap); err != nil {
		slog.Error("failed to persist snapshot", "cycle_id", snap.CycleID, "error", err)
	}

	if o.cfg.Archiver == nil {
		return
	}
	for _, cm := range snap.Messages {
		if err := o.cfg.Archiver.Insert(ctx, cm, snap.CycleID); err != nil {
			slog.Warn("failed to archive message", "message_id", cm.ID, "error", err)
		}
	}
}

// AssembleBody applies the submitted-body precedence: extracted body text,
// else the snippet; OCR text, when present, is appended after a separator
// line. The second return reports whether OCR contributed.
func AssembleBody(extracted, snippet string, ocrTexts []models.AttachmentText) (string, bool) {
	body := extracted
	if body == "" {
		body = snippet
	}

	if len(ocrTexts) == 0 {
		return body, false
	}

	texts := make([]string, 0, len(ocrTexts))
	for _, t := range ocrTexts {
		texts = append(texts, t.Text)
	}
	return body + "\n\n" + OCRSeparator + "\n" + strings.Join(texts, "\n"), true
}

// newSince collects messages from the head of the newest-first list down to
// (but not including) the marker. An unset marker means every message is
// new — on a cold start that is the whole listing page.
func newSince(messages []models.ClassifiedMessage, marker string) []models.ClassifiedMessage {
	if marker == "" {
		return messages
	}
	for i, m := range messages {
		if m.ID == marker {
			return messages[:i]
		}
	}
	return messages
}

// Start runs the periodic cycle loop: one cycle immediately, then one per
// interval, plus on-demand triggers. It returns after launching the loop.
func (o *Orchestrator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.wg.Add(1)

	go func() {
		defer o.wg.Done()

		if _, err := o.RunCycle(loopCtx); err != nil {
			slog.Error("initial cycle failed", "error", err)
		}

		ticker := time.NewTicker(o.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if _, err := o.RunCycle(loopCtx); err != nil {
					slog.Error("periodic cycle failed", "error", err)
				}
			case <-o.trigger:
				if _, err := o.RunCycle(loopCtx); err != nil {
					slog.Error("on-demand cycle failed", "error", err)
				}
			}
		}
	}()

	slog.Info("ingestion loop started", "interval", o.cfg.Interval, "list_limit", o.cfg.ListLimit)
}

// TriggerNow requests an on-demand cycle. Requests arriving while a cycle
// is already pending coalesce; callers may freely issue redundant requests.
func (o *Orchestrator) TriggerNow() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// Stop shuts down the cycle loop.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}
