package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-hub/queue"
	"github.com/redis/go-redis/v9"
)

const heartbeatPrefix = keyPrefix + ":consumer:heartbeat"

// heartbeatTTL bounds how long a silent consumer is still reported as active
const heartbeatTTL = 60 * time.Second

// Heartbeat stores or refreshes a consumer's liveness record
func (s *Store) Heartbeat(ctx context.Context, consumerID, status string) error {
	key := fmt.Sprintf("%s:%s", heartbeatPrefix, consumerID)

	data, err := json.Marshal(queue.Heartbeat{
		ConsumerID:    consumerID,
		Status:        status,
		LastHeartbeat: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := s.client.Set(ctx, key, data, heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}
	return nil
}

// ActiveConsumers returns every consumer whose heartbeat has not expired
func (s *Store) ActiveConsumers(ctx context.Context) ([]queue.Heartbeat, error) {
	var consumers []queue.Heartbeat

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, heartbeatPrefix+":*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning heartbeat keys: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				// Key expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("getting heartbeat: %w", err)
			}

			var hb queue.Heartbeat
			if err := json.Unmarshal([]byte(data), &hb); err != nil {
				continue
			}
			consumers = append(consumers, hb)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return consumers, nil
}
