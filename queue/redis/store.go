package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-hub/queue"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of queue.Store
 * Lanes are lists, the processing set is a hash plus a zset of claim times,
 * scheduled retries live in a zset scored by ready time, dead letters in a list
 * All keys share the {queue} hash tag so the Lua scripts stay cluster-safe
 */

const (
	keyPrefix       = "{queue}"
	processingKey   = keyPrefix + ":processing"       // Hash: id -> item JSON
	processingSince = keyPrefix + ":processing:since" // ZSet: id scored by claim time (ms)
	delayedKey      = keyPrefix + ":delayed"          // ZSet: item JSON scored by ready time (ms)
	deadLetterKey   = keyPrefix + ":dead_letter"      // List: dead letter JSON
	statsKey        = keyPrefix + ":stats"            // Hash: completed, failed
)

func laneKey(p queue.Priority) string {
	return fmt.Sprintf("%s:lane:%s", keyPrefix, p.String())
}

func laneKeys() []string {
	keys := make([]string, 0, len(queue.Lanes))
	for _, p := range queue.Lanes {
		keys = append(keys, laneKey(p))
	}
	return keys
}

var popScript = redis.NewScript(`
for i = 1, 3 do
  local raw = redis.call('LPOP', KEYS[i])
  if raw then
    local item = cjson.decode(raw)
    redis.call('HSET', KEYS[4], item.id, raw)
    redis.call('ZADD', KEYS[5], ARGV[1], item.id)
    return raw
  end
end
return false
`)

// claimGuard aborts unless ARGV[1] still holds the claim made at ARGV[2] ms, then releases it
const claimGuard = `
local since = redis.call('ZSCORE', KEYS[2], ARGV[1])
if not since or tonumber(since) ~= tonumber(ARGV[2]) then
  return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[1])
`

var completeScript = redis.NewScript(claimGuard + `
redis.call('HINCRBY', KEYS[3], 'completed', 1)
return 1
`)

var retryScript = redis.NewScript(claimGuard + `
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[3])
return 1
`)

var buryScript = redis.NewScript(claimGuard + `
redis.call('RPUSH', KEYS[3], ARGV[3])
redis.call('HINCRBY', KEYS[4], 'failed', 1)
return 1
`)

var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, raw in ipairs(due) do
  local item = cjson.decode(raw)
  local lane = KEYS[3]
  if item.priority == 'high' then
    lane = KEYS[2]
  elseif item.priority == 'low' then
    lane = KEYS[4]
  end
  redis.call('ZREM', KEYS[1], raw)
  redis.call('RPUSH', lane, raw)
end
return #due
`)

type Store struct {
	client       *redis.Client
	promoteBatch int
}

// NewStore creates a Redis-backed queue store
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return NewStoreWithClient(client), nil
}

// NewStoreWithClient wraps an existing client
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client, promoteBatch: 100}
}

// Push appends an item to the tail of its lane
func (s *Store) Push(ctx context.Context, item queue.Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	if err := s.client.RPush(ctx, laneKey(item.Priority), raw).Err(); err != nil {
		return fmt.Errorf("pushing to lane: %w", err)
	}
	return nil
}

// Pop atomically moves the head of the highest non-empty lane into the processing set
func (s *Store) Pop(ctx context.Context, now time.Time) (queue.Item, bool, error) {
	claimed := now.UnixMilli()
	keys := append(laneKeys(), processingKey, processingSince)
	raw, err := popScript.Run(ctx, s.client, keys, claimed).Text()
	if errors.Is(err, redis.Nil) {
		return queue.Item{}, false, nil
	}
	if err != nil {
		return queue.Item{}, false, fmt.Errorf("running pop script: %w", err)
	}
	var item queue.Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return queue.Item{}, false, fmt.Errorf("unmarshaling item: %w", err)
	}
	item.ClaimedAt = time.UnixMilli(claimed)
	return item, true, nil
}

// Complete drops the processing marker and counts a completion
func (s *Store) Complete(ctx context.Context, item queue.Item) (bool, error) {
	keys := []string{processingKey, processingSince, statsKey}
	n, err := completeScript.Run(ctx, s.client, keys, item.ID, item.ClaimedAt.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("running complete script: %w", err)
	}
	return n == 1, nil
}

// Retry drops the processing marker and schedules the item
func (s *Store) Retry(ctx context.Context, item queue.Item, readyAt time.Time) (bool, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("marshaling item: %w", err)
	}
	keys := []string{processingKey, processingSince, delayedKey}
	n, err := retryScript.Run(ctx, s.client, keys,
		item.ID, item.ClaimedAt.UnixMilli(), string(raw), readyAt.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("running retry script: %w", err)
	}
	return n == 1, nil
}

// PromoteDue moves ready retries back into their lanes
func (s *Store) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	keys := append([]string{delayedKey}, laneKeys()...)
	n, err := promoteScript.Run(ctx, s.client, keys, now.UnixMilli(), s.promoteBatch).Int()
	if err != nil {
		return 0, fmt.Errorf("running promote script: %w", err)
	}
	return n, nil
}

// Stale lists processing entries claimed before the cutoff without releasing them
func (s *Store) Stale(ctx context.Context, before time.Time) ([]queue.Item, error) {
	claims, err := s.client.ZRangeByScoreWithScores(ctx, processingSince, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("listing stale claims: %w", err)
	}
	if len(claims) == 0 {
		return nil, nil
	}

	ids := make([]string, len(claims))
	for i, c := range claims {
		ids[i], _ = c.Member.(string)
	}
	raws, err := s.client.HMGet(ctx, processingKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading stale items: %w", err)
	}

	items := make([]queue.Item, 0, len(raws))
	for i, v := range raws {
		raw, ok := v.(string)
		if !ok {
			// Released between the two reads
			continue
		}
		var item queue.Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		item.ClaimedAt = time.UnixMilli(int64(claims[i].Score))
		items = append(items, item)
	}
	return items, nil
}

// Bury stores the dead letter and counts a failure
func (s *Store) Bury(ctx context.Context, dl queue.DeadLetter) (bool, error) {
	raw, err := json.Marshal(dl)
	if err != nil {
		return false, fmt.Errorf("marshaling dead letter: %w", err)
	}
	keys := []string{processingKey, processingSince, deadLetterKey, statsKey}
	n, err := buryScript.Run(ctx, s.client, keys, dl.Item.ID, dl.Item.ClaimedAt.UnixMilli(), string(raw)).Int()
	if err != nil {
		return false, fmt.Errorf("running bury script: %w", err)
	}
	return n == 1, nil
}

/* Replay pops dead letters one at a time; LPOP hands each entry to exactly one
 * caller, so concurrent replays never push the same item twice
 */
func (s *Store) Replay(ctx context.Context, n int) ([]queue.Item, error) {
	items := make([]queue.Item, 0, n)
	for len(items) < n {
		raw, err := s.client.LPop(ctx, deadLetterKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return items, fmt.Errorf("popping dead letter: %w", err)
		}
		var dl queue.DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			continue
		}
		item := dl.Item
		item.RetryCount = 0
		if err := s.Push(ctx, item); err != nil {
			// Put it back so it is not lost
			s.client.LPush(ctx, deadLetterKey, raw)
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// DeadLetters lists up to limit dead letters, oldest first
func (s *Store) DeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	raws, err := s.client.LRange(ctx, deadLetterKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	out := make([]queue.DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var dl queue.DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			continue
		}
		out = append(out, dl)
	}
	return out, nil
}

// Stats reads every counter in one pipeline
func (s *Store) Stats(ctx context.Context) (queue.Stats, error) {
	pipe := s.client.Pipeline()
	lanes := make([]*redis.IntCmd, len(queue.Lanes))
	for i, p := range queue.Lanes {
		lanes[i] = pipe.LLen(ctx, laneKey(p))
	}
	delayed := pipe.ZCard(ctx, delayedKey)
	processing := pipe.HLen(ctx, processingKey)
	dead := pipe.LLen(ctx, deadLetterKey)
	counters := pipe.HGetAll(ctx, statsKey)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return queue.Stats{}, fmt.Errorf("executing pipeline: %w", err)
	}

	stats := queue.Stats{
		Delayed:    delayed.Val(),
		Processing: processing.Val(),
		DeadLetter: dead.Val(),
		Lanes:      make(map[string]int64, len(queue.Lanes)),
	}
	for i, p := range queue.Lanes {
		stats.Lanes[p.String()] = lanes[i].Val()
		stats.Pending += lanes[i].Val()
	}
	stats.Pending += stats.Delayed
	stats.Completed = parseInt64(counters.Val()["completed"])
	stats.Failed = parseInt64(counters.Val()["failed"])
	return stats, nil
}

// Close closes the Redis connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

// Client returns the underlying Redis client for components sharing the connection
func (s *Store) Client() *redis.Client {
	return s.client
}

func parseInt64(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
