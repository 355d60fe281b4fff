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

package match

import "github.com/mailguard/agent/internal/metrics"

// RowFields are the identifying fields a host UI row exposes. IDs holds the
// row's candidate strong identifiers (message/thread id attributes) — up to
// three alternates in practice; all weak fields are optional.
type RowFields struct {
	IDs     []string `json:"ids,omitempty"`
	Subject string   `json:"subject,omitempty"`
	Snippet string   `json:"snippet,omitempty"`
	Sender  string   `json:"sender,omitempty"`
}

// MatchRow resolves a row against the index using the fallback chain:
// any strong id, else sender+subject, else subject+snippet, else subject
// alone. Returns nil when nothing matches — a valid terminal outcome
// meaning "no annotation for this row this cycle", not a failure.
func (ix *Index) MatchRow(row RowFields) *Entry {
	for _, id := range row.IDs {
		if id == "" {
			continue
		}
		if e, ok := ix.Lookup("id:" + id); ok {
			metrics.MatchHits.WithLabelValues("id").Inc()
			return &e
		}
	}

	if row.Sender != "" && row.Subject != "" {
		if e, ok := ix.Lookup("fs:" + hashKey(row.Sender, row.Subject)); ok {
			metrics.MatchHits.WithLabelValues("fs").Inc()
			return &e
		}
	}

	if row.Subject != "" && row.Snippet != "" {
		if e, ok := ix.Lookup("ss:" + hashKey(row.Subject, row.Snippet)); ok {
			metrics.MatchHits.WithLabelValues("ss").Inc()
			return &e
		}
	}

	if row.Subject != "" {
		if e, ok := ix.Lookup("s:" + hashKey(row.Subject)); ok {
			metrics.MatchHits.WithLabelValues("s").Inc()
			return &e
		}
	}

	metrics.MatchHits.WithLabelValues("none").Inc()
	return nil
}
