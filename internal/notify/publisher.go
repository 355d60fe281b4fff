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

// Package notify publishes fire-and-forget "new message" signals to a Redis
// queue. The display surface (extension popup, desktop notifier) consumes
// them externally.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mailguard/agent/internal/dedup"
	"github.com/mailguard/agent/internal/metrics"
	"github.com/mailguard/agent/internal/models"
)

// Publisher sends notification envelopes to a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
	filter    *dedup.Filter
}

// NewPublisher creates a publisher targeting the specified queue. The dedup
// filter guards against duplicate notifications from overlapping cycles.
func NewPublisher(rdb *redis.Client, queueName string, filter *dedup.Filter) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		filter:    filter,
	}
}

// envelope is the notification wire shape consumed by the display surface.
type envelope struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	MessageID string   `json:"message_id"`
	Sender    string   `json:"sender"`
	Subject   string   `json:"subject"`
	Verdict   string   `json:"verdict"`
	Score     *float64 `json:"score"`
	CreatedAt string   `json:"created_at"`
}

// NotifyNewMessage publishes one new-message signal. Messages already
// notified (by this or a concurrently running cycle) are silently skipped.
func (p *Publisher) NotifyNewMessage(ctx context.Context, cm models.ClassifiedMessage) error {
	isNew, err := p.filter.IsNew(ctx, cm.ID)
	if err != nil {
		slog.Warn("notification dedup check failed, proceeding", "error", err)
	} else if !isNew {
		slog.Debug("skipping already-notified message", "message_id", cm.ID)
		return nil
	}

	label := models.VerdictUnknown
	var score *float64
	if cm.Verdict != nil {
		label = cm.Verdict.Label
		score = cm.Verdict.Score
	}

	env := envelope{
		ID:        uuid.New().String(),
		Type:      "new_message",
		MessageID: cm.ID,
		Sender:    cm.Sender,
		Subject:   cm.Subject,
		Verdict:   label,
		Score:     score,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, data).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	metrics.NotificationsPublished.Inc()
	slog.Info("published new-message notification",
		"notification_id", env.ID,
		"message_id", cm.ID,
		"verdict", label,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
