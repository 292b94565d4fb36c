package domain

import "fmt"

// DefaultTimeLimitSeconds is the countdown length of every question.
const DefaultTimeLimitSeconds = 30

// Question models an MCQ question. Options are positionally distinct even when
// two of them carry the same text.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctAnswer"`
}

// Validate checks that the question has at least two options and that the
// correct option is one of them.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: %q has %d options", ErrInvalidQuestion, q.Text, len(q.Options))
	}
	if !q.HasOption(q.CorrectOption) {
		return fmt.Errorf("%w: %q correct answer is not an option", ErrInvalidQuestion, q.Text)
	}
	return nil
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot alias the options slice.
func (q Question) Clone() Question {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	q.Options = options
	return q
}

// Choice is the answer recorded for a finalized question. A skip is tagged with
// Skipped rather than a sentinel string so it never collides with option text.
type Choice struct {
	Option  string `json:"option,omitempty"`
	Skipped bool   `json:"skipped"`
}

// SkipChoice is the SKIP-marker.
func SkipChoice() Choice {
	return Choice{Skipped: true}
}

// OptionChoice records an explicit answer.
func OptionChoice(option string) Choice {
	return Choice{Option: option}
}

func (c Choice) String() string {
	if c.Skipped {
		return "Skipped"
	}
	return c.Option
}

// AnsweredQuestion is appended once per question when it is finalized.
type AnsweredQuestion struct {
	Question  Question `json:"question"`
	Choice    Choice   `json:"choice"`
	IsCorrect bool     `json:"isCorrect"`
}

// NewAnsweredQuestion scores choice against the question's correct option.
// A skip is always wrong.
func NewAnsweredQuestion(q Question, choice Choice) AnsweredQuestion {
	return AnsweredQuestion{
		Question:  q,
		Choice:    choice,
		IsCorrect: !choice.Skipped && choice.Option == q.CorrectOption,
	}
}

// Phase is the lifecycle status of a session.
type Phase string

const (
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// View is the presenter read model, captured after every operation.
type View struct {
	SessionID            string            `json:"sessionId"`
	Phase                Phase             `json:"phase"`
	CurrentIndex         int               `json:"currentIndex"`
	TotalQuestions       int               `json:"totalQuestions"`
	QuestionText         string            `json:"question"`
	Options              []string          `json:"options"`
	SelectedOption       string            `json:"selectedOption,omitempty"`
	HasSelection         bool              `json:"hasSelection"`
	TimeRemainingSeconds int               `json:"timeRemaining"`
	AnsweredCount        int               `json:"answeredCount"`
	Score                int               `json:"score"`
	IsLast               bool              `json:"isLast"`
	Reviewing            bool              `json:"reviewing"`
	Recorded             *AnsweredQuestion `json:"recorded,omitempty"`
}

// Result is the terminal payload of a finished session.
type Result struct {
	FinalScore int                `json:"finalScore"`
	Total      int                `json:"total"`
	Answered   []AnsweredQuestion `json:"answered"`
}

// Summary is a result paired with the persisted high score.
type Summary struct {
	Result
	HighScore    int  `json:"highScore"`
	NewHighScore bool `json:"newHighScore"`
}
