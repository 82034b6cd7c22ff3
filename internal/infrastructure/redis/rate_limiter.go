package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/justone-api/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "otp_rate:"

// hitScript counts one request and opens the window on the first one.
// Returns {count, window_start_unix}.
var hitScript = goredis.NewScript(`
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
if count == 1 then
  redis.call('HSET', KEYS[1], 'start', ARGV[1])
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
local start = redis.call('HGET', KEYS[1], 'start')
return {count, tonumber(start)}
`)

// RateLimiter is a fixed-window counter per namespaced key backed by Redis.
// The script runs atomically, so the limit holds under concurrent requests.
type RateLimiter struct {
	client *goredis.Client
	max    int
	window time.Duration
}

func NewRateLimiter(client *goredis.Client, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, max: max, window: window}
}

// Hit records one request for key. When the window is full it returns the
// current window together with an error wrapping domain.ErrRateLimited.
func (l *RateLimiter) Hit(ctx context.Context, key string, now time.Time) (*domain.RateLimitWindow, error) {
	res, err := hitScript.Run(ctx, l.client, []string{keyPrefix + key}, now.Unix(), l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redis rate limit: unexpected reply %v", res)
	}
	w := &domain.RateLimitWindow{
		Key:         key,
		Count:       int(res[0]),
		WindowStart: res[1],
	}
	if w.Count > l.max {
		w.Count = l.max
		return w, fmt.Errorf("%d requests in window: %w", l.max, domain.ErrRateLimited)
	}
	return w, nil
}
