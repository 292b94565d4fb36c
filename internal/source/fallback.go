package source

import (
	"context"
	"fmt"
	"time"

	"timed-quiz/internal/domain"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one remote fetch.
const DefaultTimeout = 5 * time.Second

// Source supplies the question list of a new session.
type Source interface {
	Fetch(ctx context.Context) ([]domain.Question, error)
}

// Fallback tries the primary source under a timeout and substitutes the
// fallback list on any failure, so fetch errors never reach the presenter.
type Fallback struct {
	primary  Source
	fallback Source
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewFallback(primary, fallback Source, timeout time.Duration, log logrus.FieldLogger) *Fallback {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fallback{primary: primary, fallback: fallback, timeout: timeout, log: log}
}

func (f *Fallback) Fetch(ctx context.Context) ([]domain.Question, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	questions, err := f.primary.Fetch(fetchCtx)
	if err == nil && len(questions) > 0 {
		f.log.WithField("questions", len(questions)).Debug("questions fetched")
		return questions, nil
	}
	if err == nil {
		err = fmt.Errorf("%w: %w", domain.ErrFetch, domain.ErrNoQuestions)
	}

	f.log.WithError(err).Warn("falling back to local questions")
	return f.fallback.Fetch(ctx)
}
