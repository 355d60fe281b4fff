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

// Package match builds a content-addressable lookup from the persisted
// snapshot and resolves UI rows to verdicts through a tiered key chain:
// exact message ID, then progressively weaker hashes of the row's textual
// fields. Weak keys may collide; collisions degrade match quality, never
// correctness.
package match

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/mailguard/agent/internal/models"
)

// hashPrefixLen bounds how much of each input feeds the hash. Subjects and
// snippets beyond this length add no discriminating power.
const hashPrefixLen = 120

// Entry is the verdict data held per key.
type Entry struct {
	Label   string   `json:"label"`
	Score   *float64 `json:"score"`
	Reasons []string `json:"reasons"`
}

// Index maps key strings across four key spaces to verdict entries. It is
// ephemeral: rebuilt in full from the current snapshot, never patched
// incrementally.
type Index struct {
	entries map[string]Entry
}

// Build constructs the index from a snapshot. The collection is iterated in
// stored order (newest first); the first registration of a key wins, later
// duplicates within the same rebuild are ignored.
func Build(snap *models.Snapshot) *Index {
	ix := &Index{entries: make(map[string]Entry)}
	if snap == nil {
		return ix
	}

	for _, m := range snap.Messages {
		if m.Verdict == nil {
			continue
		}
		e := Entry{
			Label:   m.Verdict.Label,
			Score:   m.Verdict.Score,
			Reasons: m.Verdict.Reasons,
		}

		ix.register("id:"+m.ID, e)
		if m.Subject != "" && m.Snippet != "" {
			ix.register("ss:"+hashKey(m.Subject, m.Snippet), e)
		}
		if m.Subject != "" {
			ix.register("s:"+hashKey(m.Subject), e)
		}
		if m.Sender != "" && m.Subject != "" {
			ix.register("fs:"+hashKey(m.Sender, m.Subject), e)
		}
	}

	return ix
}

// register sets a key only if it is not already present (first-writer-wins).
func (ix *Index) register(key string, e Entry) {
	if _, exists := ix.entries[key]; exists {
		return
	}
	ix.entries[key] = e
}

// Lookup probes a single key string.
func (ix *Index) Lookup(key string) (Entry, bool) {
	e, ok := ix.entries[key]
	return e, ok
}

// Len returns the number of registered keys.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// hashKey produces a deterministic, order-sensitive hash over the inputs.
// Each input is lower-cased, trimmed, and truncated to a bounded prefix
// before hashing; FNV-1a keeps the result stable across calls within one
// process lifetime.
func hashKey(parts ...string) string {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		p = strings.ToLower(strings.TrimSpace(p))
		if len(p) > hashPrefixLen {
			p = p[:hashPrefixLen]
		}
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
