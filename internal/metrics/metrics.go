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

// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed ingestion cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailguard_cycles_total",
			Help: "Completed ingestion cycles by outcome",
		},
		[]string{"outcome"}, // ok, auth_error, list_error
	)

	// CycleDuration observes end-to-end cycle latency.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailguard_cycle_duration_seconds",
			Help:    "Ingestion cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	// MessagesClassified counts classified messages by verdict label.
	MessagesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailguard_messages_classified_total",
			Help: "Messages classified per cycle, labelled by verdict",
		},
		[]string{"verdict"},
	)

	// ClassifierLatency observes classifier round-trip latency.
	ClassifierLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailguard_classifier_latency_seconds",
			Help:    "Classifier request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// MatchHits counts row lookups resolved per key space.
	MatchHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailguard_match_hits_total",
			Help: "Row-to-verdict matches by key space",
		},
		[]string{"key_space"}, // id, fs, ss, s, none
	)

	// NotificationsPublished counts new-message notifications.
	NotificationsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailguard_notifications_published_total",
			Help: "New-message notifications published to the queue",
		},
	)

	// AnnotationsSent counts annotate commands pushed to UI sessions.
	AnnotationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailguard_annotations_sent_total",
			Help: "Annotate commands sent to host UI sessions",
		},
	)
)
