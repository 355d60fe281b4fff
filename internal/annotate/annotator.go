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

// Package annotate keeps host UI rows marked with their verdicts. The host
// UI re-renders itself unpredictably, so the rendered marker is never
// treated as the source of truth: what was decided for a row is remembered
// separately, and the marker is rebuilt from that memory whenever the host
// strips it.
package annotate

import (
	"sync"

	"github.com/mailguard/agent/internal/match"
	"github.com/mailguard/agent/internal/metrics"
)

// Command is an instruction sent to the host UI session.
type Command struct {
	Type     string   `json:"type"` // "annotate"
	RowID    string   `json:"row_id"`
	Label    string   `json:"label"`
	Score    *float64 `json:"score,omitempty"`
	Reasons  []string `json:"reasons,omitempty"`
	Reattach bool     `json:"reattach,omitempty"`
}

// RowInfo identifies one visible row and its extractable fields.
type RowInfo struct {
	RowID  string          `json:"row_id"`
	Fields match.RowFields `json:"fields"`
}

// rowState separates the durable decision (owned by this system) from the
// volatile rendered marker (owned by the host UI).
type rowState struct {
	decided        *match.Entry
	markerAttached bool
}

// Annotator attaches verdict markers to rows idempotently and re-attaches
// them after host re-renders.
type Annotator struct {
	mu   sync.Mutex
	rows map[string]*rowState
	send func(Command) error
}

// New creates an annotator that emits commands through send.
func New(send func(Command) error) *Annotator {
	return &Annotator{
		rows: make(map[string]*rowState),
		send: send,
	}
}

// Scan walks the currently visible rows. Rows already annotated are no-ops;
// rows whose marker the host stripped are re-attached from remembered state;
// unseen (or previously unmatched) rows are resolved against the index.
func (a *Annotator) Scan(ix *match.Index, rows []RowInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, row := range rows {
		st, seen := a.rows[row.RowID]
		if !seen {
			st = &rowState{}
			a.rows[row.RowID] = st
		}

		if st.decided != nil {
			if !st.markerAttached {
				a.attach(row.RowID, st, true)
			}
			continue
		}

		// Unmatched rows are re-probed on every scan: a snapshot refresh
		// may have brought their verdict in since the last pass.
		if e := ix.MatchRow(row.Fields); e != nil {
			st.decided = e
			a.attach(row.RowID, st, false)
		}
	}
}

// MarkerStripped handles the host UI discarding a row's marker subtree.
// The marker is rebuilt from the remembered verdict without re-querying
// the index.
func (a *Annotator) MarkerStripped(rowID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.rows[rowID]
	if !ok {
		return
	}
	st.markerAttached = false
	if st.decided != nil {
		a.attach(rowID, st, true)
	}
}

// RowRemoved forgets a row that left the DOM entirely. If the host later
// recreates it, it starts a fresh lifetime.
func (a *Annotator) RowRemoved(rowID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.rows, rowID)
}

// MarkerCount reports how many rows currently have an attached marker.
func (a *Annotator) MarkerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, st := range a.rows {
		if st.markerAttached {
			n++
		}
	}
	return n
}

// attach sends the annotate command and records the marker as present.
// Caller holds the lock.
func (a *Annotator) attach(rowID string, st *rowState, reattach bool) {
	cmd := Command{
		Type:     "annotate",
		RowID:    rowID,
		Label:    st.decided.Label,
		Score:    st.decided.Score,
		Reasons:  st.decided.Reasons,
		Reattach: reattach,
	}
	if err := a.send(cmd); err != nil {
		// Leave markerAttached false so the next scan retries.
		return
	}
	st.markerAttached = true
	metrics.AnnotationsSent.Inc()
}
