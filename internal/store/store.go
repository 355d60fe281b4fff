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

// Package store persists the snapshot, the last-seen marker, and the
// on-demand verdict cache in Redis. Values are whole-key reads and writes;
// there are no transactions, last write wins.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mailguard/agent/internal/models"
)

const (
	snapshotKey      = "mailguard:snapshot"
	lastSeenKey      = "mailguard:lastseen"
	verdictKeyPrefix = "mailguard:verdict:"
)

// Store is the Redis-backed key-value store shared by both pipelines.
type Store struct {
	rdb *redis.Client
}

// New creates a store on top of an existing Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// SaveSnapshot overwrites the full snapshot. Never merged with the previous
// value.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot, or nil when none exists yet.
func (s *Store) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// LastSeen returns the last-seen marker, or "" when unset.
func (s *Store) LastSeen(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, lastSeenKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read last-seen marker: %w", err)
	}
	return v, nil
}

// SetLastSeen advances the last-seen marker.
func (s *Store) SetLastSeen(ctx context.Context, messageID string) error {
	if err := s.rdb.Set(ctx, lastSeenKey, messageID, 0).Err(); err != nil {
		return fmt.Errorf("write last-seen marker: %w", err)
	}
	return nil
}

// GetVerdict reads the cached verdict for an on-demand key, or nil on miss.
func (s *Store) GetVerdict(ctx context.Context, key string) (*models.Verdict, error) {
	data, err := s.rdb.Get(ctx, verdictKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read verdict cache: %w", err)
	}
	var v models.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode cached verdict: %w", err)
	}
	return &v, nil
}

// SetVerdict caches a verdict for an on-demand key with the given TTL.
func (s *Store) SetVerdict(ctx context.Context, key string, v *models.Verdict, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	if err := s.rdb.Set(ctx, verdictKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("write verdict cache: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}
