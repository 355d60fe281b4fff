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

package models

import "time"

// Verdict labels. The classifier produces benign/suspicious/spam; the agent
// synthesises unknown (no label in the response) and error (transport or
// non-2xx failure).
const (
	VerdictBenign     = "benign"
	VerdictSpam       = "spam"
	VerdictSuspicious = "suspicious"
	VerdictUnknown    = "unknown"
	VerdictError      = "error"
)

// ClientMeta identifies the submitting agent to the classifier.
type ClientMeta struct {
	Agent   string `json:"agent"`
	Version string `json:"version"`
	CycleID string `json:"cycle_id,omitempty"`
}

// ClassificationRecord is the request body for POST /analyze_email/.
// Body is the single canonical text: extracted body text, else the snippet,
// with OCR text appended when present.
type ClassificationRecord struct {
	MessageID       string     `json:"message_id"`
	Sender          string     `json:"sender"`
	Subject         string     `json:"subject"`
	Body            string     `json:"body"`
	AttachmentsText []string   `json:"attachments_text"`
	FetchedAt       string     `json:"fetched_at"`
	ClientMeta      ClientMeta `json:"client_meta"`
	ForceRecompute  bool       `json:"force_recompute,omitempty"`
}

// Verdict is the classifier's output for one submitted record. Immutable
// after creation. Score is nil when the classifier returned a non-numeric
// or absent score.
type Verdict struct {
	Label   string   `json:"verdict"`
	Score   *float64 `json:"score"`
	Reasons []string `json:"reasons"`
	Cached  bool     `json:"cached"`
}

// ClassifiedMessage is one message together with its submitted body and
// verdict, as persisted in the snapshot.
type ClassifiedMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Snippet   string    `json:"snippet"`
	BodyText  string    `json:"body_text"`
	OCRUsed   bool      `json:"ocr_used"`
	FetchedAt time.Time `json:"fetched_at"`
	Verdict   *Verdict  `json:"verdict,omitempty"`
}

// Snapshot is the full set of classified messages from one ingestion cycle,
// newest first. It is overwritten wholesale at the end of each cycle, never
// merged with its predecessor.
type Snapshot struct {
	CycleID   string              `json:"cycle_id"`
	Messages  []ClassifiedMessage `json:"messages"`
	UpdatedAt time.Time           `json:"updated_at"`
}
