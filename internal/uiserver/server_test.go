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

package uiserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mailguard/agent/internal/annotate"
	"github.com/mailguard/agent/internal/models"
)

// mockLoader implements SnapshotLoader with a swappable snapshot.
type mockLoader struct {
	mu   sync.Mutex
	snap *models.Snapshot
}

func (m *mockLoader) LoadSnapshot(_ context.Context) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *mockLoader) set(snap *models.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
}

func spamSnapshot(ids ...string) *models.Snapshot {
	score := 0.9
	snap := &models.Snapshot{CycleID: "c1", UpdatedAt: time.Now()}
	for _, id := range ids {
		snap.Messages = append(snap.Messages, models.ClassifiedMessage{
			ID:      id,
			Verdict: &models.Verdict{Label: models.VerdictSpam, Score: &score, Reasons: []string{"r"}},
		})
	}
	return snap
}

func dialSession(t *testing.T, loader SnapshotLoader) (*Server, *websocket.Conn) {
	t.Helper()
	ui := NewServer(loader, 20*time.Millisecond, time.Hour)
	server := httptest.NewServer(http.HandlerFunc(ui.ServeWS))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return ui, conn
}

func readCommand(t *testing.T, conn *websocket.Conn) annotate.Command {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var cmd annotate.Command
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("read command: %v", err)
	}
	return cmd
}

// TestSession_RowsTriggerAnnotation verifies the full path: rows event →
// debounced scan → index lookup → annotate command back over the socket.
func TestSession_RowsTriggerAnnotation(t *testing.T) {
	loader := &mockLoader{snap: spamSnapshot("m1")}
	_, conn := dialSession(t, loader)

	err := conn.WriteJSON(map[string]interface{}{
		"type": "rows",
		"rows": []map[string]interface{}{
			{"row_id": "r1", "fields": map[string]interface{}{"ids": []string{"m1"}}},
		},
	})
	if err != nil {
		t.Fatalf("write rows: %v", err)
	}

	cmd := readCommand(t, conn)
	if cmd.Type != "annotate" || cmd.RowID != "r1" || cmd.Label != models.VerdictSpam {
		t.Errorf("command = %+v, want annotate r1 spam", cmd)
	}
	if cmd.Reattach {
		t.Error("initial annotation flagged as reattach")
	}
}

// TestSession_MarkerStrippedReattaches verifies the immediate reattach path
// after the host UI strips a marker.
func TestSession_MarkerStrippedReattaches(t *testing.T) {
	loader := &mockLoader{snap: spamSnapshot("m1")}
	_, conn := dialSession(t, loader)

	conn.WriteJSON(map[string]interface{}{
		"type": "rows",
		"rows": []map[string]interface{}{
			{"row_id": "r1", "fields": map[string]interface{}{"ids": []string{"m1"}}},
		},
	})
	readCommand(t, conn) // initial annotation

	conn.WriteJSON(map[string]interface{}{"type": "marker_stripped", "row_id": "r1"})

	cmd := readCommand(t, conn)
	if !cmd.Reattach || cmd.RowID != "r1" {
		t.Errorf("command = %+v, want reattach for r1", cmd)
	}
}

// TestSession_MutationKicksScan verifies a mutation event after a snapshot
// change gets the updated verdict annotated.
func TestSession_MutationKicksScan(t *testing.T) {
	loader := &mockLoader{snap: &models.Snapshot{}}
	_, conn := dialSession(t, loader)

	conn.WriteJSON(map[string]interface{}{
		"type": "rows",
		"rows": []map[string]interface{}{
			{"row_id": "r1", "fields": map[string]interface{}{"ids": []string{"m1"}}},
		},
	})

	// Give the first (empty-index) scan time to complete.
	time.Sleep(100 * time.Millisecond)

	loader.set(spamSnapshot("m1"))
	conn.WriteJSON(map[string]interface{}{"type": "mutation"})

	cmd := readCommand(t, conn)
	if cmd.RowID != "r1" || cmd.Label != models.VerdictSpam {
		t.Errorf("command = %+v, want r1 spam after refresh", cmd)
	}
}

// TestSessionCount tracks connect and disconnect.
func TestSessionCount(t *testing.T) {
	loader := &mockLoader{}
	ui, conn := dialSession(t, loader)

	deadline := time.Now().Add(time.Second)
	for ui.SessionCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := ui.SessionCount(); got != 1 {
		t.Fatalf("SessionCount = %d, want 1", got)
	}

	conn.Close()
	deadline = time.Now().Add(time.Second)
	for ui.SessionCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := ui.SessionCount(); got != 0 {
		t.Errorf("SessionCount = %d after close, want 0", got)
	}
}
