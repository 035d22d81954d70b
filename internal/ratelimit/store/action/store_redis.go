package action

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whozin/internal/ratelimit/models"
	"whozin/pkg/platform/sentinel"
)

const redisKeyPrefix = "whozin:action:"

// checkAndRecordScript stores the accepted timestamp (ms) and expires it with the
// window, so a missing key and an expired window read the same.
//
// KEYS[1] key, ARGV[1] now ms, ARGV[2] window ms.
// Returns {allowed, retry_after_ms}.
var checkAndRecordScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local last = redis.call('GET', KEYS[1])
if last then
  local elapsed = now - tonumber(last)
  if elapsed < 0 then
    elapsed = 0
  end
  if elapsed < window then
    return {0, window - elapsed}
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', window)
return {1, 0}
`)

// RedisActionStore shares the last accepted attempts between instances.
type RedisActionStore struct {
	client redis.Scripter
}

// NewRedis constructs a Redis-backed action store.
func NewRedis(client redis.Scripter) *RedisActionStore {
	return &RedisActionStore{client: client}
}

// CheckAndRecord implements ports.ActionStore. The read and the write run in one
// script, so concurrent instances agree on a single winner per window.
func (s *RedisActionStore) CheckAndRecord(ctx context.Context, key string, window time.Duration, now time.Time) (*models.Decision, error) {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		return models.Allow(), nil
	}

	res, err := checkAndRecordScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, now.UnixMilli(), windowMs).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("check and record action: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("check and record action: unexpected reply length %d: %w", len(res), sentinel.ErrInvalidState)
	}
	if res[0] == 1 {
		return models.Allow(), nil
	}
	return models.Reject(time.Duration(res[1]) * time.Millisecond), nil
}
