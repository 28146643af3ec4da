package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// The first INCR of a window sets its expiry, so the window is fixed rather than sliding
var allowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if count > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

// Redis is a fixed-window counter shared by every instance using the same server
type Redis struct {
	client redis.UniversalClient
}

// NewRedis creates a Redis-backed limiter
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Allow counts the request and reports whether it is within the limit
func (r *Redis) Allow(ctx context.Context, provider, source string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("ratelimit:{%s}:%s", provider, source)
	ok, err := allowScript.Run(ctx, r.client, []string{key}, limit, Window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("running rate limit script: %w", err)
	}
	return ok == 1, nil
}
