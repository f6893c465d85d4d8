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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrSourceUnavailable indicates the source store could not serve a read.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrWriteUnavailable indicates the destination store refused a write.
	ErrWriteUnavailable = errors.New("destination unavailable")

	// ErrLeaseConflict indicates the pipeline lease is held by another owner.
	ErrLeaseConflict = errors.New("lease held by another owner")

	// ErrWatermarkConflict indicates the committed watermark changed since it
	// was read.
	ErrWatermarkConflict = errors.New("watermark changed concurrently")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
