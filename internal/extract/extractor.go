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

// Package extract converts a message's nested MIME structure into a single
// canonical plain-text body, and locates image attachments for OCR.
package extract

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mailguard/agent/internal/models"
)

// CanonicalText derives the canonical plain-text body from a message's part
// tree. Preference order: first text/plain part with inline data, first
// text/html part (converted to text), the top-level part's own inline data.
// Never fails; returns "" when nothing is decodable.
func CanonicalText(payload *models.MessagePart) string {
	if payload == nil {
		return ""
	}

	if p := findPart(payload, "text/plain"); p != nil {
		return cleanText(DecodeBody(p.Data))
	}

	if p := findPart(payload, "text/html"); p != nil {
		return HTMLToText(DecodeBody(p.Data))
	}

	if payload.Data != "" {
		return cleanText(DecodeBody(payload.Data))
	}

	return ""
}

// findPart returns the first part (depth-first) with the given mime type
// and inline data.
func findPart(p *models.MessagePart, mimeType string) *models.MessagePart {
	if strings.EqualFold(p.MimeType, mimeType) && p.Data != "" {
		return p
	}
	for i := range p.Parts {
		if found := findPart(&p.Parts[i], mimeType); found != nil {
			return found
		}
	}
	return nil
}

// DecodeBody decodes inline part data. The wire format is URL-safe base64
// ('-' and '_' in place of '+' and '/'). The result is interpreted as UTF-8
// text, falling back to byte-as-char decoding for other encodings, and to ""
// when the data is not base64 at all.
func DecodeBody(data string) string {
	if data == "" {
		return ""
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}

	if utf8.Valid(raw) {
		return string(raw)
	}

	// Not valid UTF-8: map each byte to its code point so no content is lost.
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

var (
	reHead    = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	reStyle   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reScript  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reBlock   = regexp.MustCompile(`(?i)</(?:p|div|tr|table|h[1-6]|ul|ol|blockquote)>|<br\s*/?>`)
	reListing = regexp.MustCompile(`(?i)<li[^>]*>`)
	reTag     = regexp.MustCompile(`<[^>]+>`)
	reSpaces  = regexp.MustCompile(` {2,}`)
	reBlank   = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText converts an HTML body to readable plain text: head/style/script
// blocks are dropped, block-level closings and line breaks become newlines,
// list items become bullets, remaining tags are stripped, and the standard
// entities are unescaped.
func HTMLToText(html string) string {
	s := reHead.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reScript.ReplaceAllString(s, "")
	s = reBlock.ReplaceAllString(s, "\n")
	s = reListing.ReplaceAllString(s, "\n• ")
	s = reTag.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")

	return cleanText(s)
}

// cleanText collapses runs of spaces and blank lines and trims the result.
func cleanText(s string) string {
	s = reSpaces.ReplaceAllString(s, " ")
	s = reBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
