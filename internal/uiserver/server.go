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

// Package uiserver serves host UI sessions over WebSocket. The content
// script streams row visibility and mutation events in; the agent streams
// idempotent annotate commands back. Each session owns its annotator and
// scan scheduler; the verdict index is rebuilt from a complete snapshot
// before every scan, so partial index states are never observable.
package uiserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mailguard/agent/internal/annotate"
	"github.com/mailguard/agent/internal/match"
	"github.com/mailguard/agent/internal/models"
)

// SnapshotLoader reads the current persisted snapshot. Implemented by
// store.Store.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// event is the inbound message shape from the host UI session.
type event struct {
	Type  string             `json:"type"` // rows, mutation, scroll, marker_stripped, row_removed
	Rows  []annotate.RowInfo `json:"rows,omitempty"`
	RowID string             `json:"row_id,omitempty"`
}

// Server manages host UI sessions.
type Server struct {
	loader   SnapshotLoader
	debounce time.Duration
	fallback time.Duration
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewServer creates the UI session server.
func NewServer(loader SnapshotLoader, debounce, fallback time.Duration) *Server {
	return &Server{
		loader:   loader,
		debounce: debounce,
		fallback: fallback,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The extension's content script connects from the host page
			// origin; auth is the local deployment boundary.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// session is one connected host UI tab.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	annot *annotate.Annotator
	sched *annotate.Scheduler

	mu      sync.Mutex
	visible []annotate.RowInfo
}

// ServeWS upgrades the connection and runs the session until the peer
// disconnects.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &session{conn: conn}
	sess.annot = annotate.New(sess.sendCommand)
	sess.sched = annotate.NewScheduler(s.debounce, s.fallback, func() {
		s.scanSession(r.Context(), sess)
	})

	// Start the scheduler before the session becomes visible to
	// BroadcastRefresh.
	sess.sched.Start(r.Context())

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	slog.Info("host UI session connected", "remote", conn.RemoteAddr().String())

	s.readLoop(sess)

	sess.sched.Stop()
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	conn.Close()
	slog.Info("host UI session closed", "remote", conn.RemoteAddr().String())
}

// readLoop dispatches inbound events until the connection drops.
func (s *Server) readLoop(sess *session) {
	for {
		var ev event
		if err := sess.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("host UI session read error", "error", err)
			}
			return
		}

		switch ev.Type {
		case "rows":
			sess.mu.Lock()
			sess.visible = ev.Rows
			sess.mu.Unlock()
			sess.sched.Kick()
		case "mutation", "scroll":
			sess.sched.Kick()
		case "marker_stripped":
			// Immediate re-attach from remembered state; no index query.
			sess.annot.MarkerStripped(ev.RowID)
		case "row_removed":
			sess.annot.RowRemoved(ev.RowID)
		default:
			slog.Debug("ignoring unknown UI event", "type", ev.Type)
		}
	}
}

// scanSession rebuilds the index from the full persisted snapshot and scans
// the session's visible rows.
func (s *Server) scanSession(ctx context.Context, sess *session) {
	snap, err := s.loader.LoadSnapshot(ctx)
	if err != nil {
		slog.Error("scan skipped: snapshot load failed", "error", err)
		return
	}

	sess.mu.Lock()
	rows := make([]annotate.RowInfo, len(sess.visible))
	copy(rows, sess.visible)
	sess.mu.Unlock()

	ix := match.Build(snap)
	sess.annot.Scan(ix, rows)
}

// sendCommand writes one command to the session, serialising writes.
func (sess *session) sendCommand(cmd annotate.Command) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteJSON(cmd)
}

// BroadcastRefresh nudges every connected session to re-scan after a new
// snapshot lands. Retries on a fixed backoff tolerate the host UI finishing
// its own rendering late.
func (s *Server) BroadcastRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.sched.NotifyRefresh()
	}
}

// SessionCount reports connected sessions (health/debug).
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
