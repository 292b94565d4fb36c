package memory

import (
	"context"
	"sync"
)

// ScoreStore keeps the high score in process memory; it is lost on restart.
type ScoreStore struct {
	mu    sync.RWMutex
	score int
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{}
}

func (s *ScoreStore) Get(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.score, nil
}

func (s *ScoreStore) Set(_ context.Context, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = score
	return nil
}
