package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session is unknown or already ended.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidState is returned when an operation is called outside its valid phase.
	ErrInvalidState = errors.New("invalid session state")
	// ErrNoSelection is returned when advancing without a pending selection.
	ErrNoSelection = fmt.Errorf("%w: no option selected", ErrInvalidState)
	// ErrOptionNotFound indicates a selected option is not part of the current question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidQuestion indicates a question record violates the question invariants.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrNoQuestions is returned when a session would be built from an empty list.
	ErrNoQuestions = errors.New("no questions")
	// ErrFetch wraps every network, parse or empty-result failure of a question source.
	ErrFetch = errors.New("fetch questions")
)
