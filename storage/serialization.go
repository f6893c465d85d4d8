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

import (
	"github.com/poiesic/vecsync/core"
)

// MarshalCursor serializes a Cursor to bytes.
func MarshalCursor(cursor core.Cursor) []byte {
	buf := make([]byte, core.CursorMUS.Size(cursor))
	core.CursorMUS.Marshal(cursor, buf)
	return buf
}

// UnmarshalCursor deserializes a Cursor from bytes.
func UnmarshalCursor(data []byte) (core.Cursor, error) {
	cursor, _, err := core.CursorMUS.Unmarshal(data)
	return cursor, err
}

// MarshalSourceRecord serializes a SourceRecord to bytes.
func MarshalSourceRecord(record *core.SourceRecord) []byte {
	buf := make([]byte, core.SourceRecordMUS.Size(*record))
	core.SourceRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalSourceRecord deserializes a SourceRecord from bytes.
func UnmarshalSourceRecord(data []byte) (*core.SourceRecord, error) {
	record, _, err := core.SourceRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalDestinationRow serializes a DestinationRow to bytes.
func MarshalDestinationRow(row *core.DestinationRow) []byte {
	buf := make([]byte, core.DestinationRowMUS.Size(*row))
	core.DestinationRowMUS.Marshal(*row, buf)
	return buf
}

// UnmarshalDestinationRow deserializes a DestinationRow from bytes.
func UnmarshalDestinationRow(data []byte) (*core.DestinationRow, error) {
	row, _, err := core.DestinationRowMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// MarshalWatermark serializes a Watermark to bytes.
func MarshalWatermark(watermark *core.Watermark) []byte {
	buf := make([]byte, core.WatermarkMUS.Size(*watermark))
	core.WatermarkMUS.Marshal(*watermark, buf)
	return buf
}

// UnmarshalWatermark deserializes a Watermark from bytes.
func UnmarshalWatermark(data []byte) (*core.Watermark, error) {
	watermark, _, err := core.WatermarkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &watermark, nil
}

// MarshalLease serializes a Lease to bytes.
func MarshalLease(lease *core.Lease) []byte {
	buf := make([]byte, core.LeaseMUS.Size(*lease))
	core.LeaseMUS.Marshal(*lease, buf)
	return buf
}

// UnmarshalLease deserializes a Lease from bytes.
func UnmarshalLease(data []byte) (*core.Lease, error) {
	lease, _, err := core.LeaseMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &lease, nil
}
