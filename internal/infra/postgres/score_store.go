package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DefaultScoreKey is the well-known row key of the high score.
const DefaultScoreKey = "highScore"

// ScoreStore keeps the high score as one row of the quiz_scores table.
type ScoreStore struct {
	pool *pgxpool.Pool
	key  string
}

func NewScoreStore(pool *pgxpool.Pool, key string) *ScoreStore {
	if key == "" {
		key = DefaultScoreKey
	}
	return &ScoreStore{pool: pool, key: key}
}

func (s *ScoreStore) Get(ctx context.Context) (int, error) {
	var score int
	err := s.pool.QueryRow(ctx, `SELECT value FROM quiz_scores WHERE key=$1`, s.key).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load score: %w", err)
	}
	return score, nil
}

// Set upserts the score. GREATEST keeps the row monotonic even when two
// instances finish a quiz at the same time.
func (s *ScoreStore) Set(ctx context.Context, score int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_scores (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = GREATEST(quiz_scores.value, EXCLUDED.value), updated_at = now()`,
		s.key, score)
	if err != nil {
		return fmt.Errorf("store score: %w", err)
	}
	return nil
}
