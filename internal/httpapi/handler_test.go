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

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mailguard/agent/internal/classifier"
	"github.com/mailguard/agent/internal/models"
)

type mockTrigger struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTrigger) TriggerNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockVerdictCache struct{}

func (mockVerdictCache) GetVerdict(_ context.Context, _ string) (*models.Verdict, error) {
	return nil, nil
}

func (mockVerdictCache) SetVerdict(_ context.Context, _ string, _ *models.Verdict, _ time.Duration) error {
	return nil
}

func testHandler(t *testing.T, classifyLabel string) (*Handler, *mockTrigger) {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"verdict": classifyLabel,
			"score":   0.7,
			"reasons": []string{"test"},
		})
	}))
	t.Cleanup(backend.Close)

	od := classifier.NewOnDemand(
		classifier.NewClient(backend.URL, 5*time.Second),
		mockVerdictCache{},
		time.Hour,
	)
	trigger := &mockTrigger{}
	return NewHandler(od, trigger, &mockPinger{}, nil), trigger
}

// TestServeClassify covers the on-demand classification round trip.
func TestServeClassify(t *testing.T) {
	h, _ := testHandler(t, "spam")

	req := httptest.NewRequest(http.MethodPost, "/classify",
		strings.NewReader(`{"key":"k1","from":"a@b.c","subject":"s","text":"free pills"}`))
	rec := httptest.NewRecorder()
	h.ServeClassify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Key     string          `json:"key"`
		Verdict *models.Verdict `json:"verdict"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Key != "k1" {
		t.Errorf("Key = %q, want k1", resp.Key)
	}
	if resp.Verdict == nil || resp.Verdict.Label != models.VerdictSpam {
		t.Errorf("Verdict = %+v, want spam", resp.Verdict)
	}
}

func TestServeClassify_Validation(t *testing.T) {
	h, _ := testHandler(t, "benign")

	rec := httptest.NewRecorder()
	h.ServeClassify(rec, httptest.NewRequest(http.MethodGet, "/classify", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeClassify(rec, httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeClassify(rec, httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader(`{"key":"k"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", rec.Code)
	}
}

// TestServeCycle verifies the manual trigger endpoint.
func TestServeCycle(t *testing.T) {
	h, trigger := testHandler(t, "benign")

	rec := httptest.NewRecorder()
	h.ServeCycle(rec, httptest.NewRequest(http.MethodPost, "/cycle", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if trigger.calls != 1 {
		t.Errorf("trigger calls = %d, want 1", trigger.calls)
	}

	rec = httptest.NewRecorder()
	h.ServeCycle(rec, httptest.NewRequest(http.MethodGet, "/cycle", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

// TestServeHealth covers healthy and degraded states.
func TestServeHealth(t *testing.T) {
	od := classifier.NewOnDemand(classifier.NewClient("http://unused", time.Second), mockVerdictCache{}, time.Hour)

	h := NewHandler(od, &mockTrigger{}, &mockPinger{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d, want 200", rec.Code)
	}

	h = NewHandler(od, &mockTrigger{}, &mockPinger{err: errors.New("down")}, nil)
	rec = httptest.NewRecorder()
	h.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rec.Code)
	}

	h = NewHandler(od, &mockTrigger{}, &mockPinger{}, &mockPinger{err: errors.New("pg down")})
	rec = httptest.NewRecorder()
	h.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("archive-degraded status = %d, want 503", rec.Code)
	}
}
