package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"quizee-service/internal/app"
	"quizee-service/internal/auth"
	"quizee-service/internal/domain"
	"quizee-service/internal/logger"
)

// RESTHandler serves the request/response side of the service: browsing,
// publishing and scoring.
type RESTHandler struct {
	service *app.QuizeeService
	tokens  *auth.Tokens
	log     *logger.Logger
}

func NewRESTHandler(service *app.QuizeeService, tokens *auth.Tokens, log *logger.Logger) *RESTHandler {
	return &RESTHandler{service: service, tokens: tokens, log: logger.OrNop(log)}
}

type publishResponse struct {
	QuizID string `json:"quizId"`
}

type checkRequest struct {
	Answers []domain.PlayerAnswer `json:"answers"`
}

func (h *RESTHandler) ListQuizees(w http.ResponseWriter, r *http.Request) {
	infos, err := h.service.ListQuizees(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *RESTHandler) GetQuizee(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetPublicQuizee(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *RESTHandler) PublishQuizee(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid quizee payload", Code: "bad_request"})
		return
	}

	// No prompter: a request without a valid token cannot sign in.
	gate := auth.NewGate(h.tokens, nil)
	if token := bearerToken(r); token != "" {
		if _, err := gate.Authenticate(token); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorPayload{Message: "invalid or expired token", Code: "auth_required"})
			return
		}
	}

	id, err := h.service.PublishQuizee(r.Context(), gate, quiz)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, publishResponse{QuizID: id})
}

func (h *RESTHandler) CheckAnswers(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid answers payload", Code: "bad_request"})
		return
	}
	result, err := h.service.CheckAnswers(r.Context(), r.PathValue("id"), req.Answers)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RESTHandler) writeError(w http.ResponseWriter, err error) {
	_, status := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, toErrorPayload(err))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
