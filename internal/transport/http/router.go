package http

import (
	"net/http"
	"time"

	"quizee-service/internal/app"
	"quizee-service/internal/auth"
	"quizee-service/internal/logger"
)

type RouterOptions struct {
	Tokens   *auth.Tokens
	Debounce time.Duration
	Logger   *logger.Logger
}

// NewRouter wires every HTTP and websocket endpoint onto one mux.
func NewRouter(service *app.QuizeeService, opts RouterOptions) http.Handler {
	rest := NewRESTHandler(service, opts.Tokens, opts.Logger)
	play := NewPlayHandler(service, opts.Logger)
	edit := NewEditHandler(service, opts.Tokens, opts.Debounce, opts.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /quizees", rest.ListQuizees)
	mux.HandleFunc("GET /quizees/{id}", rest.GetQuizee)
	mux.HandleFunc("POST /quizees", rest.PublishQuizee)
	mux.HandleFunc("POST /quizees/{id}/check", rest.CheckAnswers)
	mux.HandleFunc("/ws/play", play.ServeWS)
	mux.HandleFunc("/ws/edit", edit.ServeWS)
	return mux
}
