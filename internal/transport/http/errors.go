package http

import (
	"context"
	"errors"
	"net/http"

	"quizee-service/internal/domain"
)

type errorPayload struct {
	Message string                   `json:"message"`
	Code    string                   `json:"code"`
	Errors  []domain.ValidationError `json:"errors,omitempty"`
}

// classify maps an error to a client-facing code and HTTP status.
func classify(err error) (string, int) {
	var invalid *domain.ValidationFailedError
	switch {
	case errors.As(err, &invalid):
		return "invalid", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrAuthRequired):
		return "auth_required", http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotOwner):
		return "forbidden", http.StatusForbidden
	case errors.Is(err, domain.ErrNotLoaded), errors.Is(err, domain.ErrCommitNotAllowed), errors.Is(err, domain.ErrResultsPending):
		return "conflict", http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPath), errors.Is(err, domain.ErrIndexOutOfRange), errors.Is(err, domain.ErrQuestionNotFound):
		return "bad_request", http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled", http.StatusRequestTimeout
	}
	return "internal", http.StatusInternalServerError
}

func toErrorPayload(err error) errorPayload {
	code, _ := classify(err)
	payload := errorPayload{Message: err.Error(), Code: code}
	var invalid *domain.ValidationFailedError
	if errors.As(err, &invalid) {
		payload.Errors = invalid.Errors
	}
	return payload
}
