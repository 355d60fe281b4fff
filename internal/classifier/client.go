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

// Package classifier submits classification records to the remote scorer
// and normalises its responses. Transport failures, non-2xx statuses, and
// malformed bodies all degrade to an error verdict — callers never see a
// raised failure past this boundary.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mailguard/agent/internal/metrics"
	"github.com/mailguard/agent/internal/models"
)

// Client talks to the classifier's /analyze_email/ endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// NewClient creates a classifier client for the given endpoint URL.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
	}
}

// wireVerdict is the classifier's response shape. Score is decoded loosely:
// only numeric values are kept.
type wireVerdict struct {
	Verdict string   `json:"verdict"`
	Score   any      `json:"score"`
	Reasons []string `json:"reasons"`
	Cached  bool     `json:"cached"`
}

// Classify submits one record and returns its verdict. Never returns an
// error: degraded outcomes are encoded in the verdict itself.
func (c *Client) Classify(ctx context.Context, rec *models.ClassificationRecord) *models.Verdict {
	body, err := json.Marshal(rec)
	if err != nil {
		return errorVerdict(fmt.Sprintf("encode record: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errorVerdict(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("classifier request failed",
			"message_id", rec.MessageID,
			"error", err,
		)
		return errorVerdict(fmt.Sprintf("classifier unreachable: %v", err))
	}
	defer resp.Body.Close()
	metrics.ClassifierLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("classifier returned non-success status",
			"message_id", rec.MessageID,
			"status", resp.StatusCode,
			"body", string(raw),
		)
		return errorVerdict(fmt.Sprintf("classifier returned HTTP %d", resp.StatusCode))
	}

	var wire wireVerdict
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return errorVerdict(fmt.Sprintf("malformed classifier response: %v", err))
	}

	return normalize(wire)
}

// normalize applies the response defaults: label falls back to unknown,
// score is kept only when numeric, reasons default to an empty list.
func normalize(wire wireVerdict) *models.Verdict {
	v := &models.Verdict{
		Label:   wire.Verdict,
		Reasons: wire.Reasons,
		Cached:  wire.Cached,
	}
	if v.Label == "" {
		v.Label = models.VerdictUnknown
	}
	if v.Reasons == nil {
		v.Reasons = []string{}
	}
	if f, ok := wire.Score.(float64); ok {
		v.Score = &f
	}
	return v
}

// errorVerdict synthesises the degraded verdict used on any failure.
func errorVerdict(reason string) *models.Verdict {
	score := 0.0
	return &models.Verdict{
		Label:   models.VerdictError,
		Score:   &score,
		Reasons: []string{reason},
	}
}
