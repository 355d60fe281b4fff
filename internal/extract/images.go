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
	"strings"

	"github.com/mailguard/agent/internal/models"
)

// LocateImages walks the part tree in pre-order (parent before children,
// siblings in structural order) and collects every image part whose bytes
// live in the external attachment store. Parts with inline image data are
// skipped — the attachment store is the only source of image bytes here.
func LocateImages(payload *models.MessagePart) []models.MessagePart {
	if payload == nil {
		return nil
	}
	var images []models.MessagePart
	collectImages(payload, &images)
	return images
}

func collectImages(p *models.MessagePart, out *[]models.MessagePart) {
	if strings.HasPrefix(strings.ToLower(p.MimeType), "image/") && p.AttachmentID != "" && p.Data == "" {
		*out = append(*out, *p)
	}
	for i := range p.Parts {
		collectImages(&p.Parts[i], out)
	}
}
