package terminal_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
	"timed-quiz/internal/infra/memory"
	"timed-quiz/internal/source"
	"timed-quiz/internal/transport/terminal"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(questions []domain.Question) *app.QuizService {
	logger, _ := test.NewNullLogger()
	ids := 0
	return app.NewQuizService(
		memory.NewSessionStore(),
		source.NewStatic(questions),
		memory.NewScoreStore(),
		app.WithLogger(logger),
		app.WithTickInterval(time.Hour),
		app.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("session-%d", ids)
		}),
	)
}

func questions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: "4"},
		{Text: "What is 3 + 3?", Options: []string{"5", "6", "7"}, CorrectOption: "6"},
	}
}

func TestRun_PlaysToSummary(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("2\nn\ns\nq\n")

	err := terminal.Run(context.Background(), newService(questions()), in, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Question 1 of 2")
	assert.Contains(t, text, "Question 2 of 2")
	assert.Contains(t, text, "Time left: 30s")
	assert.Contains(t, text, "* 2. 4")
	assert.Contains(t, text, "Your answer: 4. Correct!")
	assert.Contains(t, text, "Your answer: Skipped. Correct answer was 6")
	assert.Contains(t, text, "Final score: 1/2")
	assert.Contains(t, text, "New high score: 1")
	assert.True(t, strings.HasSuffix(text, "Bye!\n"))
}

func TestRun_Hints(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("n\n9\nhello\n")

	err := terminal.Run(context.Background(), newService(questions()), in, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Select an option first, or press s to skip.")
	assert.Contains(t, text, "Choose an option between 1 and 3.")
	assert.Contains(t, text, "Unknown command.")
}

func TestRun_ReviewAndRestart(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("1\nn\np\nn\ns\nr\nq\n")

	service := newService(questions())
	err := terminal.Run(context.Background(), service, in, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Answered: 3 (press n or s to continue)")
	assert.Contains(t, text, "Final score: 0/2")
	assert.Contains(t, text, "High score: 0")
	assert.Equal(t, 1, strings.Count(text, "Press r to restart"))
	assert.Equal(t, 3, strings.Count(text, "Question 1 of 2"), "first render, review and restart")

	_, err = service.View(context.Background(), "session-2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "quitting ends the session")
}

func TestRun_FailsWhenNoQuestions(t *testing.T) {
	err := terminal.Run(context.Background(), newService(nil), strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrFetch)
}
