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

package gmail

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mailguard/agent/internal/models"
)

// gmailPart represents one node of the message payload tree on the wire.
type gmailPart struct {
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Size         int    `json:"size"`
		Data         string `json:"data"`
		AttachmentID string `json:"attachmentId"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

// gmailMessage represents the relevant fields of a messages.get response.
type gmailMessage struct {
	ID      string    `json:"id"`
	Snippet string    `json:"snippet"`
	Payload gmailPart `json:"payload"`
}

// parseMessage converts a messages.get response into the canonical Message.
// Sender and subject come from the payload headers; the nested part tree is
// preserved as-is for the extraction stage.
func parseMessage(body io.Reader) (*models.Message, error) {
	var msg gmailMessage
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	sender, subject := "", ""
	for _, h := range msg.Payload.Headers {
		switch {
		case strings.EqualFold(h.Name, "From"):
			sender = h.Value
		case strings.EqualFold(h.Name, "Subject"):
			subject = h.Value
		}
	}

	return &models.Message{
		ID:      msg.ID,
		Sender:  sender,
		Subject: subject,
		Snippet: msg.Snippet,
		Payload: convertPart(msg.Payload),
	}, nil
}

// convertPart maps a wire part (and its children) into the canonical shape.
func convertPart(p gmailPart) models.MessagePart {
	out := models.MessagePart{
		MimeType:     p.MimeType,
		Filename:     p.Filename,
		Data:         p.Body.Data,
		AttachmentID: p.Body.AttachmentID,
	}
	for _, child := range p.Parts {
		out.Parts = append(out.Parts, convertPart(child))
	}
	return out
}
