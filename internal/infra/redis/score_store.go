package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultScoreKey is the well-known key of the high score.
const DefaultScoreKey = "highScore"

// keepMax stores ARGV[1] only when it beats the current value, so instances
// sharing one Redis never lower the high score.
var keepMax = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local score = tonumber(ARGV[1])
if current == nil then
	return redis.error_reply("high score is not a number")
end
if score > current then
	redis.call("SET", KEYS[1], ARGV[1])
	return score
end
return current
`)

// ScoreStore keeps the high score as a plain integer string under one key.
type ScoreStore struct {
	client *redis.Client
	key    string
}

func NewScoreStore(client *redis.Client, key string) *ScoreStore {
	if key == "" {
		key = DefaultScoreKey
	}
	return &ScoreStore{client: client, key: key}
}

func (s *ScoreStore) Get(ctx context.Context) (int, error) {
	score, err := s.client.Get(ctx, s.key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", s.key, err)
	}
	return score, nil
}

// Set raises the stored score to score; a lower value leaves it unchanged.
func (s *ScoreStore) Set(ctx context.Context, score int) error {
	if err := keepMax.Run(ctx, s.client, []string{s.key}, score).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}
