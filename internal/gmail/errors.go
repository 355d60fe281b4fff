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

package gmail

import "fmt"

// AuthError means the identity provider declined or was unreachable.
// It aborts the whole ingestion cycle.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("mailbox auth: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ListError means the message listing call failed. Cycle-fatal.
type ListError struct {
	Err error
}

func (e *ListError) Error() string { return fmt.Sprintf("list messages: %v", e.Err) }
func (e *ListError) Unwrap() error { return e.Err }

// DetailError means a single message's detail fetch failed. The message is
// skipped; the cycle continues.
type DetailError struct {
	MessageID string
	Err       error
}

func (e *DetailError) Error() string {
	return fmt.Sprintf("fetch message %s: %v", e.MessageID, e.Err)
}
func (e *DetailError) Unwrap() error { return e.Err }

// AttachmentError means a single attachment's bytes could not be fetched.
// Recorded as placeholder text; never affects sibling attachments.
type AttachmentError struct {
	MessageID    string
	AttachmentID string
	Err          error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("fetch attachment %s of message %s: %v", e.AttachmentID, e.MessageID, e.Err)
}
func (e *AttachmentError) Unwrap() error { return e.Err }
