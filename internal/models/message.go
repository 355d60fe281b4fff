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

// Package models defines the data structures shared across the agent.
package models

// MessageRef is a lightweight handle returned by the mailbox list endpoint.
type MessageRef struct {
	ID string `json:"id"`
}

// MessagePart is one node of a message's nested MIME structure. A part
// carries either inline Data (URL-safe base64) or an AttachmentID pointing
// at externally stored bytes, never both.
type MessagePart struct {
	MimeType     string        `json:"mime_type"`
	Filename     string        `json:"filename,omitempty"`
	Data         string        `json:"data,omitempty"`
	AttachmentID string        `json:"attachment_id,omitempty"`
	Parts        []MessagePart `json:"parts,omitempty"`
}

// Message is a fully fetched mailbox message. Immutable once fetched;
// identity is the mailbox-assigned ID.
type Message struct {
	ID      string      `json:"id"`
	Sender  string      `json:"sender"`
	Subject string      `json:"subject"`
	Snippet string      `json:"snippet"`
	Payload MessagePart `json:"payload"`
}

// AttachmentText is the OCR output (or a failure placeholder) for one
// image attachment.
type AttachmentText struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}
