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

// Package ocr enriches classification input with text recognised from image
// attachments. The feature is opt-in: without an API key the enricher is
// skipped for the whole cycle. One failed image never blocks its siblings or
// the enclosing message's classification — failures become placeholder text.
package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mailguard/agent/internal/models"
)

// AttachmentFetcher fetches raw attachment bytes from the external store.
// Implemented by gmail.Client.
type AttachmentFetcher interface {
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Enricher runs image attachments through the external OCR service.
type Enricher struct {
	fetcher    AttachmentFetcher
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewEnricher creates an OCR enricher. An empty apiKey disables enrichment.
func NewEnricher(fetcher AttachmentFetcher, endpoint, apiKey string) *Enricher {
	return &Enricher{
		fetcher:    fetcher,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Enabled reports whether OCR enrichment is configured for this run.
func (e *Enricher) Enabled() bool {
	return e.apiKey != ""
}

// Enrich fetches and recognises each located image part. The result always
// has one entry per input part, in order; entries for failed parts carry a
// human-readable placeholder instead of recognised text.
func (e *Enricher) Enrich(ctx context.Context, messageID string, images []models.MessagePart) []models.AttachmentText {
	if !e.Enabled() || len(images) == 0 {
		return nil
	}

	results := make([]models.AttachmentText, 0, len(images))
	for i, img := range images {
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i+1)
		}

		raw, err := e.fetcher.GetAttachment(ctx, messageID, img.AttachmentID)
		if err != nil {
			slog.Warn("attachment fetch failed",
				"message_id", messageID,
				"filename", name,
				"error", err,
			)
			results = append(results, models.AttachmentText{
				Filename: name,
				Text:     fmt.Sprintf("(attachment fetch error) %v", err),
			})
			continue
		}

		text, err := e.recognize(ctx, base64.RawURLEncoding.EncodeToString(raw))
		if err != nil {
			slog.Warn("OCR failed",
				"message_id", messageID,
				"filename", name,
				"error", err,
			)
			results = append(results, models.AttachmentText{
				Filename: name,
				Text:     fmt.Sprintf("(OCR error) %v", err),
			})
			continue
		}

		results = append(results, models.AttachmentText{Filename: name, Text: text})
	}

	return results
}

// ocrResponse is the OCR service's wire shape.
type ocrResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"` // string or array of strings
}

// recognize submits one base64-encoded image to the OCR service.
func (e *Enricher) recognize(ctx context.Context, b64Image string) (string, error) {
	form := url.Values{}
	form.Set("apikey", e.apiKey)
	form.Set("base64Image", b64Image)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR service returned HTTP %d", resp.StatusCode)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode OCR response: %w", err)
	}

	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("OCR service error: %s", flattenErrorMessage(parsed.ErrorMessage))
	}

	if len(parsed.ParsedResults) == 0 {
		return "", fmt.Errorf("OCR response contained no results")
	}

	var texts []string
	for _, r := range parsed.ParsedResults {
		if t := strings.TrimSpace(r.ParsedText); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// flattenErrorMessage renders the service's ErrorMessage field, which may be
// a bare string or an array of strings.
func flattenErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown"
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, "; ")
	}
	return string(raw)
}
