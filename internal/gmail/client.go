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

// Package gmail provides a client for the Gmail REST API: listing recent
// inbox messages, fetching full message payloads, and fetching attachment
// bytes. Callers treat per-call failures as skip-this-item, except listing,
// which is cycle-fatal.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mailguard/agent/internal/models"
)

// DefaultBaseURL is the root of the Gmail REST API.
const DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// Client talks to the Gmail API on behalf of one mailbox.
type Client struct {
	httpClient *http.Client
	baseURL    string
	user       string
}

// NewClient creates a Gmail API client. The httpClient must already handle
// authentication (e.g. via an oauth2 token source).
func NewClient(httpClient *http.Client, baseURL, user string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if user == "" {
		user = "me"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		user:       user,
	}
}

// listResponse is the messages.list wire shape.
type listResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
	ResultSizeEstimate int `json:"resultSizeEstimate"`
}

// ListRecent returns handles for the most recent inbox messages, newest
// first (the API's natural order).
func (c *Client) ListRecent(ctx context.Context, limit int) ([]models.MessageRef, error) {
	params := url.Values{}
	params.Set("maxResults", fmt.Sprintf("%d", limit))
	params.Set("labelIds", "INBOX")

	u := fmt.Sprintf("%s/users/%s/messages?%s", c.baseURL, url.PathEscape(c.user), params.Encode())

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, &ListError{Err: err}
	}
	defer body.Close()

	var page listResponse
	if err := json.NewDecoder(body).Decode(&page); err != nil {
		return nil, &ListError{Err: fmt.Errorf("decode list response: %w", err)}
	}

	refs := make([]models.MessageRef, 0, len(page.Messages))
	for _, m := range page.Messages {
		refs = append(refs, models.MessageRef{ID: m.ID})
	}
	return refs, nil
}

// GetDetail retrieves the full message payload for a given message ID.
// Returns (nil, nil) when the message no longer exists.
func (c *Client) GetDetail(ctx context.Context, messageID string) (*models.Message, error) {
	u := fmt.Sprintf("%s/users/%s/messages/%s?format=full",
		c.baseURL, url.PathEscape(c.user), url.PathEscape(messageID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &DetailError{MessageID: messageID, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DetailError{MessageID: messageID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("message not found (may have been deleted)",
			"message_id", messageID,
		)
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &DetailError{
			MessageID: messageID,
			Err:       fmt.Errorf("gmail API returned HTTP %d", resp.StatusCode),
		}
	}

	msg, err := parseMessage(resp.Body)
	if err != nil {
		return nil, &DetailError{MessageID: messageID, Err: err}
	}
	return msg, nil
}

// attachmentResponse is the messages.attachments.get wire shape. Data is
// URL-safe base64.
type attachmentResponse struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

// GetAttachment fetches the raw bytes of one attachment.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	u := fmt.Sprintf("%s/users/%s/messages/%s/attachments/%s",
		c.baseURL, url.PathEscape(c.user), url.PathEscape(messageID), url.PathEscape(attachmentID))

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, &AttachmentError{MessageID: messageID, AttachmentID: attachmentID, Err: err}
	}
	defer body.Close()

	var att attachmentResponse
	if err := json.NewDecoder(body).Decode(&att); err != nil {
		return nil, &AttachmentError{
			MessageID:    messageID,
			AttachmentID: attachmentID,
			Err:          fmt.Errorf("decode attachment response: %w", err),
		}
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(att.Data, "="))
	if err != nil {
		return nil, &AttachmentError{
			MessageID:    messageID,
			AttachmentID: attachmentID,
			Err:          fmt.Errorf("decode attachment data: %w", err),
		}
	}
	return raw, nil
}

// get performs an authenticated GET and returns the response body on 200.
func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		slog.Error("gmail API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("gmail API returned HTTP %d", resp.StatusCode)
	}

	return resp.Body, nil
}
