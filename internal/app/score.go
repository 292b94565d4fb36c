package app

import (
	"context"
	"fmt"
)

// RecordHighScore writes max(stored, score) back to the store. It never
// decreases the stored value and reports whether score beat it.
func RecordHighScore(ctx context.Context, store ScoreStore, score int) (int, bool, error) {
	current, err := store.Get(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("read high score: %w", err)
	}
	if score <= current {
		return current, false, nil
	}
	if err := store.Set(ctx, score); err != nil {
		return current, false, fmt.Errorf("write high score: %w", err)
	}
	return score, true, nil
}
