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

// Package httpapi exposes the agent's local HTTP surface: on-demand text
// classification, manual cycle triggers, health, metrics, and the host UI
// WebSocket endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailguard/agent/internal/classifier"
	"github.com/mailguard/agent/internal/models"
)

// Pinger reports backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CycleTrigger requests an immediate ingestion cycle.
type CycleTrigger interface {
	TriggerNow()
}

// Handler serves the agent's HTTP endpoints.
type Handler struct {
	onDemand *classifier.OnDemand
	trigger  CycleTrigger
	redis    Pinger
	archive  Pinger // nil when no database is configured
}

// NewHandler creates the HTTP handler. archive may be nil.
func NewHandler(onDemand *classifier.OnDemand, trigger CycleTrigger, redis Pinger, archive Pinger) *Handler {
	return &Handler{
		onDemand: onDemand,
		trigger:  trigger,
		redis:    redis,
		archive:  archive,
	}
}

// classifyResponse wraps the verdict for the on-demand endpoint.
type classifyResponse struct {
	Key     string          `json:"key"`
	Verdict *models.Verdict `json:"verdict"`
}

// ServeClassify handles POST /classify: classify arbitrary text through the
// remote service, consulting the verdict cache unless force_recompute is set.
func (h *Handler) ServeClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req classifier.OnDemandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	v := h.onDemand.ClassifyText(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(classifyResponse{Key: req.Key, Verdict: v})
}

// ServeCycle handles POST /cycle: schedule an immediate ingestion cycle.
func (h *Handler) ServeCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.trigger.TriggerNow()
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, `{"status":"scheduled"}`)
}

// ServeHealth reports backend connectivity.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if err := h.redis.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["redis"] = err.Error()
	}
	if h.archive != nil {
		if err := h.archive.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Serve starts the HTTP server on the given port. It binds the port
// immediately and signals readiness via the returned channel before starting
// to accept connections.
func Serve(ctx context.Context, port int, handler *Handler, ws http.HandlerFunc) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/classify", handler.ServeClassify)
	mux.HandleFunc("/cycle", handler.ServeCycle)
	mux.HandleFunc("/health", handler.ServeHealth)
	mux.Handle("/metrics", promhttp.Handler())
	if ws != nil {
		mux.HandleFunc("/ws", ws)
	}

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind api port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("api server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("api server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("api server error", "error", err)
		}
	}()

	return ready, nil
}
