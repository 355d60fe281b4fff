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

package extract

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/mailguard/agent/internal/models"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// TestCanonicalText_PrefersPlainOverHTML verifies that a text/plain part wins
// even when a text/html sibling appears first.
func TestCanonicalText_PrefersPlainOverHTML(t *testing.T) {
	payload := &models.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []models.MessagePart{
			{MimeType: "text/html", Data: b64("<p>html body</p>")},
			{MimeType: "text/plain", Data: b64("plain body")},
		},
	}

	got := CanonicalText(payload)
	if got != "plain body" {
		t.Errorf("CanonicalText = %q, want %q", got, "plain body")
	}
}

// TestCanonicalText_NestedMultipart verifies depth-first search through
// multipart/mixed wrapping multipart/alternative.
func TestCanonicalText_NestedMultipart(t *testing.T) {
	payload := &models.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []models.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []models.MessagePart{
					{MimeType: "text/plain", Data: b64("inner text")},
				},
			},
			{MimeType: "image/png", Filename: "pic.png", AttachmentID: "att1"},
		},
	}

	got := CanonicalText(payload)
	if got != "inner text" {
		t.Errorf("CanonicalText = %q, want %q", got, "inner text")
	}
}

// TestCanonicalText_HTMLFallback covers HTML-only messages.
func TestCanonicalText_HTMLFallback(t *testing.T) {
	html := `<html><head><title>x</title><style>p { color: red }</style></head>` +
		`<body><p>First &amp; second</p><ul><li>one</li><li>two</li></ul></body></html>`
	payload := &models.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []models.MessagePart{
			{MimeType: "text/html", Data: b64(html)},
		},
	}

	got := CanonicalText(payload)
	if !strings.Contains(got, "First & second") {
		t.Errorf("entity not unescaped: %q", got)
	}
	if !strings.Contains(got, "• one") || !strings.Contains(got, "• two") {
		t.Errorf("list items not bulleted: %q", got)
	}
	if strings.Contains(got, "color: red") {
		t.Errorf("style content leaked into text: %q", got)
	}
}

// TestCanonicalText_TopLevelData covers single-part messages whose payload
// carries the body directly.
func TestCanonicalText_TopLevelData(t *testing.T) {
	payload := &models.MessagePart{
		MimeType: "text/x-unknown",
		Data:     b64("raw top-level"),
	}
	if got := CanonicalText(payload); got != "raw top-level" {
		t.Errorf("CanonicalText = %q, want %q", got, "raw top-level")
	}
}

func TestCanonicalText_Empty(t *testing.T) {
	if got := CanonicalText(nil); got != "" {
		t.Errorf("CanonicalText(nil) = %q, want empty", got)
	}
	if got := CanonicalText(&models.MessagePart{MimeType: "multipart/mixed"}); got != "" {
		t.Errorf("CanonicalText(no parts) = %q, want empty", got)
	}
}

// TestDecodeBody_MultiByte verifies UTF-8 content survives the URL-safe
// base64 round trip intact.
func TestDecodeBody_MultiByte(t *testing.T) {
	original := "Grüße — 日本語 テキスト ✓"
	if got := DecodeBody(b64(original)); got != original {
		t.Errorf("DecodeBody = %q, want %q", got, original)
	}
}

// TestDecodeBody_PaddedInput verifies strings with standard '=' padding still
// decode.
func TestDecodeBody_PaddedInput(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("padded!"))
	if !strings.Contains(padded, "=") {
		t.Fatalf("test input %q has no padding", padded)
	}
	if got := DecodeBody(padded); got != "padded!" {
		t.Errorf("DecodeBody = %q, want %q", got, "padded!")
	}
}

// TestDecodeBody_Invalid verifies undecodable data degrades to empty rather
// than failing the extraction.
func TestDecodeBody_Invalid(t *testing.T) {
	if got := DecodeBody("not*base64*at*all"); got != "" {
		t.Errorf("DecodeBody = %q, want empty", got)
	}
}

// TestDecodeBody_NonUTF8 verifies bytes outside UTF-8 are preserved as code
// points instead of being dropped.
func TestDecodeBody_NonUTF8(t *testing.T) {
	// Latin-1 "café" — 0xE9 is not valid UTF-8 on its own.
	raw := []byte{'c', 'a', 'f', 0xE9}
	got := DecodeBody(base64.RawURLEncoding.EncodeToString(raw))
	if got != "café" {
		t.Errorf("DecodeBody = %q, want %q", got, "café")
	}
}

func TestHTMLToText_BlockBreaks(t *testing.T) {
	got := HTMLToText("<div>line one</div><div>line two</div>someone wrote:<br>quoted")
	want := "line one\nline two\nsomeone wrote:\nquoted"
	if got != want {
		t.Errorf("HTMLToText = %q, want %q", got, want)
	}
}

func TestHTMLToText_CollapsesWhitespace(t *testing.T) {
	got := HTMLToText("<p>a    lot     of   space</p>\n\n\n\n\n<p>next</p>")
	if strings.Contains(got, "  ") {
		t.Errorf("double spaces survived: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank line runs survived: %q", got)
	}
}

// TestLocateImages verifies traversal order and the attachment filter:
// only image/* parts that reference an attachment (no inline data) qualify.
func TestLocateImages(t *testing.T) {
	payload := &models.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []models.MessagePart{
			{MimeType: "text/plain", Data: b64("body")},
			{MimeType: "image/png", Filename: "a.png", AttachmentID: "att-a"},
			{
				MimeType: "multipart/related",
				Parts: []models.MessagePart{
					{MimeType: "image/jpeg", Filename: "b.jpg", AttachmentID: "att-b"},
				},
			},
			{MimeType: "image/gif", Filename: "inline.gif", AttachmentID: "att-c", Data: b64("x")},
			{MimeType: "application/pdf", Filename: "doc.pdf", AttachmentID: "att-d"},
		},
	}

	images := LocateImages(payload)
	if len(images) != 2 {
		t.Fatalf("len(images) = %d, want 2", len(images))
	}
	if images[0].AttachmentID != "att-a" || images[1].AttachmentID != "att-b" {
		t.Errorf("images = [%s, %s], want [att-a, att-b]",
			images[0].AttachmentID, images[1].AttachmentID)
	}
}

func TestLocateImages_Empty(t *testing.T) {
	if got := LocateImages(nil); len(got) != 0 {
		t.Errorf("LocateImages(nil) = %v, want empty", got)
	}
}
