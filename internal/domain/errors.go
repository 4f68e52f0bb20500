package domain

import (
	"errors"
	"strings"
)

var (
	ErrQuizNotFound     = errors.New("quizee not found")
	ErrNotLoaded        = errors.New("quizee is not loaded")
	ErrCommitNotAllowed = errors.New("answer is empty")
	ErrInvalidPath      = errors.New("path must start with question or answer")
	ErrAuthRequired     = errors.New("auth required")
	ErrSessionNotFound  = errors.New("session not found")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrResultsPending   = errors.New("results are not being checked")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNotOwner         = errors.New("quizee belongs to another author")
)

// ValidationFailedError is returned when a quizee cannot be published.
type ValidationFailedError struct {
	Errors []ValidationError
}

func (e *ValidationFailedError) Error() string {
	if len(e.Errors) == 0 {
		return "quizee is invalid"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Message)
	}
	return "quizee is invalid: " + strings.Join(msgs, "; ")
}
