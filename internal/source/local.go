package source

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"timed-quiz/internal/domain"
)

//go:embed fallback_questions.json
var fallbackQuestionsJSON []byte

// LocalQuestions returns the embedded fallback question set.
func LocalQuestions() ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(fallbackQuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode fallback questions: %w", err)
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return questions, nil
}

// Static is a source backed by a fixed question list (useful for tests/demos).
type Static struct {
	questions []domain.Question
}

func NewStatic(questions []domain.Question) *Static {
	return &Static{questions: questions}
}

// NewLocal builds a Static source over the embedded fallback set.
func NewLocal() (*Static, error) {
	questions, err := LocalQuestions()
	if err != nil {
		return nil, err
	}
	return NewStatic(questions), nil
}

func (s *Static) Fetch(_ context.Context) ([]domain.Question, error) {
	if len(s.questions) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, domain.ErrNoQuestions)
	}
	questions := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		questions = append(questions, q.Clone())
	}
	return questions, nil
}
