package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/vecsync/core"
)

// Key prefixes for different data types
const (
	sourceRecordPrefix = "srcrec"
	sourceCursorPrefix = "srccur"
	destinationPrefix  = "dstrow"
	watermarkPrefix    = "wmark"
	leasePrefix        = "lease"
)

// makeSourceRecordKey generates a key for a source record by ID.
func makeSourceRecordKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", sourceRecordPrefix, id))
}

// makeSourceCursorKey generates a composite key for the change stream index.
// Format: prefix:timestamp:id
//
// The timestamp goes first in BigEndian order so lexicographic key order
// matches cursor order. An empty ID appends nothing, which makes the key an
// exact lower bound for all records at that instant.
func makeSourceCursorKey(cursor core.Cursor) []byte {
	prefix := sourceCursorPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 + len(cursor.ID)
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(cursor.UpdatedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], cursor.ID)
	return buf
}

// makeDestinationKey generates a key for a destination row by ID.
func makeDestinationKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", destinationPrefix, id))
}

// makeWatermarkKey generates a key for a pipeline watermark.
func makeWatermarkKey(pipeline string) []byte {
	return []byte(fmt.Sprintf("%s:%s", watermarkPrefix, pipeline))
}

// makeLeaseKey generates a key for a pipeline lease.
func makeLeaseKey(pipeline string) []byte {
	return []byte(fmt.Sprintf("%s:%s", leasePrefix, pipeline))
}
