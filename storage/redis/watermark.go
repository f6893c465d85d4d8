package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

var _ storage.WatermarkStore = (*Store)(nil)

// advanceScript commits a new cursor only when the stored cursor still
// matches ARGV[1] (empty string meaning no watermark yet). The canonical
// cursor string makes the comparison a plain string equality.
var advanceScript = rueidis.NewLuaScript(`
local cur = redis.call('HGET', KEYS[1], 'cursor')
if (not cur and ARGV[1] == '') or (cur and cur == ARGV[1]) then
  redis.call('HSET', KEYS[1], 'cursor', ARGV[2], 'committed_at', ARGV[3])
  return 1
end
return 0
`)

// acquireScript claims the lease unless a different owner holds it.
var acquireScript = rueidis.NewLuaScript(`
local owner = redis.call('GET', KEYS[1])
if not owner or owner == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
return 0
`)

// releaseScript deletes the lease only for its owner. A missing lease
// releases cleanly.
var releaseScript = rueidis.NewLuaScript(`
local owner = redis.call('GET', KEYS[1])
if not owner then
  return 1
end
if owner == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

func watermarkKey(pipeline string) string {
	return "vecsync:wm:" + pipeline
}

func leaseKey(pipeline string) string {
	return "vecsync:lease:" + pipeline
}

// Get retrieves the committed watermark for a pipeline.
// Returns nil, nil if no watermark has ever been committed.
func (s *Store) Get(ctx context.Context, pipeline string) (*core.Watermark, error) {
	cmd := s.b().Hgetall().Key(watermarkKey(pipeline)).Build()
	fields, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	cursor, err := core.ParseCursor(fields["cursor"])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	micros, err := strconv.ParseInt(fields["committed_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad committed_at", storage.ErrSerializationFailed)
	}

	return &core.Watermark{
		Pipeline:    pipeline,
		Cursor:      cursor,
		CommittedAt: time.UnixMicro(micros).UTC(),
	}, nil
}

// CompareAndAdvance commits a new watermark cursor if the current one still
// matches expected and the cursor does not move backwards.
func (s *Store) CompareAndAdvance(ctx context.Context, pipeline string, expected *core.Watermark, cursor core.Cursor) (*core.Watermark, error) {
	if expected != nil && cursor.Before(expected.Cursor) {
		return nil, fmt.Errorf("%w: cursor moves backwards", storage.ErrWatermarkConflict)
	}

	expectedArg := ""
	if expected != nil {
		expectedArg = expected.Cursor.String()
	}
	committedAt := time.Now().UTC()

	resp := advanceScript.Exec(ctx, s.client,
		[]string{watermarkKey(pipeline)},
		[]string{expectedArg, cursor.String(), strconv.FormatInt(committedAt.UnixMicro(), 10)},
	)
	ok, err := resp.AsInt64()
	if err != nil {
		return nil, err
	}
	if ok != 1 {
		return nil, storage.ErrWatermarkConflict
	}

	return &core.Watermark{
		Pipeline:    pipeline,
		Cursor:      cursor,
		CommittedAt: committedAt,
	}, nil
}

// GetLease returns the live lease on a pipeline. Expiry is server-side, so a
// present key is by definition live; ExpiresAt is reconstructed from PTTL.
// Returns nil, nil when no lease is held.
func (s *Store) GetLease(ctx context.Context, pipeline string) (*core.Lease, error) {
	key := leaseKey(pipeline)

	owner, err := s.do(ctx, s.b().Get().Key(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, err
	}

	ttl, err := s.do(ctx, s.b().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return nil, err
	}

	lease := &core.Lease{Pipeline: pipeline, Owner: owner}
	if ttl > 0 {
		lease.ExpiresAt = time.Now().UTC().Add(time.Duration(ttl) * time.Millisecond)
	}
	return lease, nil
}

// AcquireLease claims exclusive ownership of a pipeline for ttl.
// Re-acquiring by the current owner extends the lease.
func (s *Store) AcquireLease(ctx context.Context, pipeline, owner string, ttl time.Duration) error {
	millis := ttl.Milliseconds()
	if millis <= 0 {
		return fmt.Errorf("%w: lease ttl must be positive", storage.ErrInvalidQuery)
	}

	resp := acquireScript.Exec(ctx, s.client,
		[]string{leaseKey(pipeline)},
		[]string{owner, strconv.FormatInt(millis, 10)},
	)
	ok, err := resp.AsInt64()
	if err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("%w: pipeline %q leased by another owner", storage.ErrLeaseConflict, pipeline)
	}
	return nil
}

// ReleaseLease releases the pipeline lease held by owner. Releasing an
// expired or missing lease is not an error.
func (s *Store) ReleaseLease(ctx context.Context, pipeline, owner string) error {
	resp := releaseScript.Exec(ctx, s.client,
		[]string{leaseKey(pipeline)},
		[]string{owner},
	)
	ok, err := resp.AsInt64()
	if err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("%w: pipeline %q leased by another owner", storage.ErrLeaseConflict, pipeline)
	}
	return nil
}
