// Copyright 2025 Poiesic Systems
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


package core

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeContent returns the content in the form the pipeline operates
// on: surrounding whitespace stripped. Validation and transformation both
// apply it so a record cannot pass one and fail the other.
func NormalizeContent(content string) string {
	return strings.TrimSpace(content)
}

// ValidateSourceRecord validates a SourceRecord according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - OwnerID must not be empty
//   - Content must not be empty after normalization
//   - Content must not exceed MaxContentLength bytes
//   - CreatedAt must not be in the future
//   - UpdatedAt, when set, must not be in the future
//
// NOT validated:
//   - UpdatedAt may be zero (record never edited)
//   - UpdatedAt may be earlier than CreatedAt (source clocks drift)
func ValidateSourceRecord(record *SourceRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyID)
	}

	if record.OwnerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyOwner)
	}

	if NormalizeContent(record.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}

	if len(record.Content) > MaxContentLength {
		return fmt.Errorf("%w: %w (%d bytes)", ErrInvalidRecord, ErrContentTooLong, len(record.Content))
	}

	if !IsValidTimestamp(record.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrInvalidTimestamp)
	}

	if !record.UpdatedAt.IsZero() && !IsValidTimestamp(record.UpdatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
