package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"timed-quiz/internal/domain"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceFunc func(ctx context.Context) ([]domain.Question, error)

func (f sourceFunc) Fetch(ctx context.Context) ([]domain.Question, error) { return f(ctx) }

func newFallback(t *testing.T, primary Source, timeout time.Duration) (*Fallback, *test.Hook) {
	t.Helper()
	local, err := NewLocal()
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	return NewFallback(primary, local, timeout, logger), hook
}

func TestLocalQuestions_ReferenceSet(t *testing.T) {
	questions, err := LocalQuestions()
	require.NoError(t, err)

	require.Len(t, questions, 3)
	assert.Equal(t, "Which of these is a primitive data type in Java?", questions[0].Text)
	assert.Equal(t, []string{"String", "int", "Array", "Class"}, questions[0].Options)
	assert.Equal(t, "int", questions[0].CorrectOption)
	assert.Equal(t, "main()", questions[1].CorrectOption)
	assert.Equal(t, "final", questions[2].CorrectOption)
}

func TestFallback_UsesPrimaryWhenItSucceeds(t *testing.T) {
	remote := []domain.Question{{Text: "remote", Options: []string{"a", "b"}, CorrectOption: "a"}}
	fb, hook := newFallback(t, sourceFunc(func(context.Context) ([]domain.Question, error) {
		return remote, nil
	}), time.Second)

	questions, err := fb.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, remote, questions)
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, entry.Level)
	}
}

func TestFallback_SubstitutesLocalSetOnError(t *testing.T) {
	fb, hook := newFallback(t, sourceFunc(func(context.Context) ([]domain.Question, error) {
		return nil, domain.ErrFetch
	}), time.Second)

	questions, err := fb.Fetch(context.Background())
	require.NoError(t, err, "fetch errors must not reach the presenter")
	assert.Len(t, questions, 3)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestFallback_SubstitutesLocalSetOnEmptyResult(t *testing.T) {
	fb, _ := newFallback(t, sourceFunc(func(context.Context) ([]domain.Question, error) {
		return nil, nil
	}), time.Second)

	questions, err := fb.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, questions, 3)
}

func TestFallback_BoundsSlowPrimary(t *testing.T) {
	fb, _ := newFallback(t, sourceFunc(func(ctx context.Context) ([]domain.Question, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 20*time.Millisecond)

	start := time.Now()
	questions, err := fb.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, questions, 3)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStatic_ReturnsCopies(t *testing.T) {
	local, err := NewLocal()
	require.NoError(t, err)

	first, err := local.Fetch(context.Background())
	require.NoError(t, err)
	first[0].Options[0] = "mutated"

	second, err := local.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "String", second[0].Options[0])
}

func TestStatic_EmptyIsFetchError(t *testing.T) {
	_, err := NewStatic(nil).Fetch(context.Background())
	assert.True(t, errors.Is(err, domain.ErrFetch))
}
