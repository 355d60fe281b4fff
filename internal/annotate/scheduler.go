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

package annotate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// refreshBackoff is the fixed retry schedule after a snapshot refresh: the
// host UI often finishes its own rendering asynchronously after the
// trigger fires, so one scan is rarely enough.
var refreshBackoff = []time.Duration{
	500 * time.Millisecond,
	1500 * time.Millisecond,
	3500 * time.Millisecond,
}

// Scheduler coalesces host UI mutation and scroll bursts into debounced
// scans, with a slow periodic fallback for anything the events missed.
type Scheduler struct {
	debounce time.Duration
	fallback time.Duration
	scan     func()

	kick chan struct{}

	mu      sync.Mutex // guards loopCtx and cancel
	loopCtx context.Context
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

// NewScheduler creates a scan scheduler. scan is invoked from the
// scheduler's own goroutine, never concurrently with itself.
func NewScheduler(debounce, fallback time.Duration, scan func()) *Scheduler {
	return &Scheduler{
		debounce: debounce,
		fallback: fallback,
		scan:     scan,
		kick:     make(chan struct{}, 1),
	}
}

// Kick registers a mutation/scroll trigger. Bursts coalesce: the newest
// trigger resets the debounce timer.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// NotifyRefresh schedules scan retries on the fixed backoff schedule after
// an external snapshot refresh.
func (s *Scheduler) NotifyRefresh() {
	s.mu.Lock()
	ctx := s.loopCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, delay := range refreshBackoff {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				s.Kick()
			}
		}
	}()
}

// Start launches the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.loopCtx = loopCtx
	s.cancel = cancel
	s.mu.Unlock()
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.run(loopCtx)
	}()

	slog.Debug("scan scheduler started", "debounce", s.debounce, "fallback", s.fallback)
}

func (s *Scheduler) run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	fallback := time.NewTicker(s.fallback)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.debounce)
			armed = true
		case <-timer.C:
			armed = false
			s.scan()
		case <-fallback.C:
			s.scan()
		}
	}
}

// Stop shuts down the scheduler loop and any pending refresh retries.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
