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

package classifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailguard/agent/internal/models"
)

// VerdictCache is the per-key cache consulted before a live classifier
// call. Implemented by store.Store.
type VerdictCache interface {
	GetVerdict(ctx context.Context, key string) (*models.Verdict, error)
	SetVerdict(ctx context.Context, key string, v *models.Verdict, ttl time.Duration) error
}

// OnDemandRequest is a single synthesised record: one row's weak fields
// plus a caller-chosen cache key.
type OnDemandRequest struct {
	Key            string `json:"key"`
	From           string `json:"from"`
	Subject        string `json:"subject"`
	Text           string `json:"text"`
	ForceRecompute bool   `json:"force_recompute,omitempty"`
}

// OnDemand wraps a Client with a per-key verdict cache for single-row
// classification requests.
type OnDemand struct {
	client *Client
	cache  VerdictCache
	ttl    time.Duration
}

// NewOnDemand creates the cached single-record classification path.
func NewOnDemand(client *Client, cache VerdictCache, ttl time.Duration) *OnDemand {
	return &OnDemand{client: client, cache: cache, ttl: ttl}
}

// ClassifyText classifies one synthesised record, consulting the cache
// first unless the caller forces a recompute. Live results are cached;
// degraded error verdicts are not, so the next request retries.
func (o *OnDemand) ClassifyText(ctx context.Context, req OnDemandRequest) *models.Verdict {
	if !req.ForceRecompute {
		if cached, err := o.cache.GetVerdict(ctx, req.Key); err != nil {
			slog.Warn("verdict cache read failed", "key", req.Key, "error", err)
		} else if cached != nil {
			hit := *cached
			hit.Cached = true
			return &hit
		}
	}

	rec := &models.ClassificationRecord{
		MessageID:      req.Key,
		Sender:         req.From,
		Subject:        req.Subject,
		Body:           req.Text,
		FetchedAt:      time.Now().UTC().Format(time.RFC3339),
		ClientMeta:     models.ClientMeta{Agent: "mailguard-agent", Version: "1"},
		ForceRecompute: req.ForceRecompute,
	}

	v := o.client.Classify(ctx, rec)

	if v.Label != models.VerdictError {
		if err := o.cache.SetVerdict(ctx, req.Key, v, o.ttl); err != nil {
			slog.Warn("verdict cache write failed", "key", req.Key, "error", err)
		}
	}

	return v
}
