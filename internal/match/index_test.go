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

import (
	"strings"
	"testing"

	"github.com/mailguard/agent/internal/models"
)

func verdict(label string, score float64) *models.Verdict {
	return &models.Verdict{Label: label, Score: &score, Reasons: []string{}}
}

func snapshot(msgs ...models.ClassifiedMessage) *models.Snapshot {
	return &models.Snapshot{CycleID: "c1", Messages: msgs}
}

// TestBuild_RegistersAllKeySpaces verifies one fully-populated message lands
// in all four key spaces.
func TestBuild_RegistersAllKeySpaces(t *testing.T) {
	ix := Build(snapshot(models.ClassifiedMessage{
		ID:      "m1",
		Sender:  "spam@example.com",
		Subject: "You won",
		Snippet: "Claim your prize now",
		Verdict: verdict(models.VerdictSpam, 0.9),
	}))

	if ix.Len() != 4 {
		t.Errorf("Len = %d, want 4", ix.Len())
	}
	if _, ok := ix.Lookup("id:m1"); !ok {
		t.Error("id key missing")
	}
	if _, ok := ix.Lookup("ss:" + hashKey("You won", "Claim your prize now")); !ok {
		t.Error("subject+snippet key missing")
	}
	if _, ok := ix.Lookup("s:" + hashKey("You won")); !ok {
		t.Error("subject key missing")
	}
	if _, ok := ix.Lookup("fs:" + hashKey("spam@example.com", "You won")); !ok {
		t.Error("sender+subject key missing")
	}
}

// TestBuild_SkipsEmptyFields verifies weak keys are only registered when
// their source fields are present.
func TestBuild_SkipsEmptyFields(t *testing.T) {
	ix := Build(snapshot(models.ClassifiedMessage{
		ID:      "m1",
		Verdict: verdict(models.VerdictBenign, 0.1),
	}))

	if ix.Len() != 1 {
		t.Errorf("Len = %d, want only the id key", ix.Len())
	}
}

// TestBuild_SkipsUnclassified verifies messages without a verdict are not
// indexed at all.
func TestBuild_SkipsUnclassified(t *testing.T) {
	ix := Build(snapshot(models.ClassifiedMessage{ID: "m1", Subject: "s"}))
	if ix.Len() != 0 {
		t.Errorf("Len = %d, want 0", ix.Len())
	}
}

// TestBuild_FirstWriterWins verifies that when two messages collide on a
// weak key, the earlier (newer) message's entry is kept.
func TestBuild_FirstWriterWins(t *testing.T) {
	ix := Build(snapshot(
		models.ClassifiedMessage{
			ID: "newer", Subject: "Invoice", Snippet: "different",
			Verdict: verdict(models.VerdictSpam, 0.8),
		},
		models.ClassifiedMessage{
			ID: "older", Subject: "Invoice", Snippet: "also different",
			Verdict: verdict(models.VerdictBenign, 0.1),
		},
	))

	e, ok := ix.Lookup("s:" + hashKey("Invoice"))
	if !ok {
		t.Fatal("subject key missing")
	}
	if e.Label != models.VerdictSpam {
		t.Errorf("colliding subject key Label = %q, want the newer message's spam", e.Label)
	}
}

func TestBuild_NilSnapshot(t *testing.T) {
	if got := Build(nil).Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

// TestHashKey_Canonicalisation verifies case, surrounding space, and content
// past the bounded prefix do not affect the hash, while order does.
func TestHashKey_Canonicalisation(t *testing.T) {
	if hashKey("  Hello World ") != hashKey("hello world") {
		t.Error("case/space variants hash differently")
	}
	long := strings.Repeat("x", 200)
	if hashKey(long) != hashKey(long+"tail beyond the prefix") {
		t.Error("content past the prefix changed the hash")
	}
	if hashKey("a", "b") == hashKey("b", "a") {
		t.Error("input order did not affect the hash")
	}
	if len(hashKey("x")) != 16 {
		t.Errorf("hash length = %d, want 16 hex chars", len(hashKey("x")))
	}
}

// TestMatchRow_StrongIDFirst verifies a strong id wins over weak fields that
// would resolve to a different message.
func TestMatchRow_StrongIDFirst(t *testing.T) {
	ix := Build(snapshot(
		models.ClassifiedMessage{
			ID: "m1", Sender: "a@x.com", Subject: "subj", Snippet: "snip",
			Verdict: verdict(models.VerdictSpam, 0.9),
		},
		models.ClassifiedMessage{
			ID:      "m2",
			Verdict: verdict(models.VerdictBenign, 0.1),
		},
	))

	e := ix.MatchRow(RowFields{
		IDs:     []string{"", "m2"},
		Sender:  "a@x.com",
		Subject: "subj",
		Snippet: "snip",
	})
	if e == nil {
		t.Fatal("no match")
	}
	if e.Label != models.VerdictBenign {
		t.Errorf("Label = %q, want benign from the id match", e.Label)
	}
}

// TestMatchRow_FallbackChain steps through weaker keys as fields go missing.
func TestMatchRow_FallbackChain(t *testing.T) {
	ix := Build(snapshot(models.ClassifiedMessage{
		ID: "m1", Sender: "a@x.com", Subject: "subj", Snippet: "snip",
		Verdict: verdict(models.VerdictSuspicious, 0.5),
	}))

	cases := []struct {
		name string
		row  RowFields
	}{
		{"sender+subject", RowFields{Sender: "a@x.com", Subject: "subj"}},
		{"subject+snippet", RowFields{Subject: "subj", Snippet: "snip"}},
		{"subject only", RowFields{Subject: "subj"}},
		{"unknown id falls through", RowFields{IDs: []string{"other"}, Subject: "subj"}},
	}
	for _, tc := range cases {
		if e := ix.MatchRow(tc.row); e == nil || e.Label != models.VerdictSuspicious {
			t.Errorf("%s: match = %v, want suspicious", tc.name, e)
		}
	}
}

// TestMatchRow_NoMatch verifies a fully unknown row resolves to nil.
func TestMatchRow_NoMatch(t *testing.T) {
	ix := Build(snapshot(models.ClassifiedMessage{
		ID: "m1", Subject: "subj",
		Verdict: verdict(models.VerdictBenign, 0.1),
	}))

	if e := ix.MatchRow(RowFields{IDs: []string{"nope"}, Subject: "different"}); e != nil {
		t.Errorf("match = %v, want nil", e)
	}
	if e := ix.MatchRow(RowFields{}); e != nil {
		t.Errorf("empty row match = %v, want nil", e)
	}
}
