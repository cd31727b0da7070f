package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/askdex/internal/db"
)

// incrIfBelowScript returns {value, allowed}. The TTL is set on the first
// increment only, so a counter never outlives its window.
const incrIfBelowScript = `
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used >= tonumber(ARGV[1]) then
  return {used, 0}
end
used = redis.call('INCR', KEYS[1])
if used == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return {used, 1}
`

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(string(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrIfBelow runs the check-and-increment server side in one script call.
func (s *Store) IncrIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	args := []string{strconv.FormatInt(limit, 10), strconv.FormatInt(int64(ttl.Seconds()), 10)}
	raw, err := s.quota.Exec(ctx, s.client, []string{key}, args).ToArray()
	if err != nil {
		return 0, false, &db.Error{Op: db.OpEval, Err: err}
	}
	if len(raw) != 2 {
		return 0, false, &db.Error{Op: db.OpEval, Err: fmt.Errorf("unexpected reply length %d", len(raw))}
	}

	used, err := raw[0].AsInt64()
	if err != nil {
		return 0, false, &db.Error{Op: db.OpEval, Err: err}
	}
	allowed, err := raw[1].AsInt64()
	if err != nil {
		return 0, false, &db.Error{Op: db.OpEval, Err: err}
	}
	return used, allowed == 1, nil
}
