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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a SourceRecord failed validation.
	ErrInvalidRecord = errors.New("invalid source record")

	// ErrEmptyID indicates the record ID field is empty.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrEmptyOwner indicates the record OwnerID field is empty.
	ErrEmptyOwner = errors.New("owner id cannot be empty")

	// ErrEmptyContent indicates the Content field is empty after normalization.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrContentTooLong indicates the Content field exceeds MaxContentLength.
	ErrContentTooLong = errors.New("content exceeds maximum length")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidCursor indicates a cursor string is not in canonical form.
	ErrInvalidCursor = errors.New("invalid cursor")
)
