package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"quizee-service/internal/app"
	"quizee-service/internal/logger"
)

// PlayHandler runs one player session per websocket.
type PlayHandler struct {
	service  *app.QuizeeService
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewPlayHandler(service *app.QuizeeService, log *logger.Logger) *PlayHandler {
	return &PlayHandler{service: service, log: logger.OrNop(log), upgrader: newUpgrader()}
}

type answerPayload struct {
	Answer []string `json:"answer"`
}

var errUnsupported = errors.New("unsupported message type")

// ServeWS opens a player on ?quizId= and streams its state:
// quizee, question, state, canCommit, progress, result and error messages.
// Inbound messages are save, commit, reload and recheck.
func (h *PlayHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	session, err := h.service.OpenPlayer(r.Context(), quizID)
	if err != nil {
		_, status := classify(err)
		http.Error(w, err.Error(), status)
		return
	}
	defer h.service.CloseSession(session.ID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := h.log.With("sessionId", session.ID, "quizId", quizID)
	out := newOutbox(conn, log)
	defer out.close()

	p := session.Player
	stops := []func(){
		forward(out, p.Quizee(), "quizee"),
		forward(out, p.Question(), "question"),
		forward(out, p.State(), "state"),
		forward(out, p.CanCommit(), "canCommit"),
		forward(out, p.Progress(), "progress"),
		forward(out, p.Result(), "result"),
	}
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.service.TouchSession(ctx, session.ID)

		var opErr error
		switch inbound.Type {
		case "save":
			payload, err := decode[answerPayload](inbound.Payload)
			if err != nil {
				opErr = fmt.Errorf("invalid save payload: %w", err)
				break
			}
			p.SaveAnswer(payload.Answer)
		case "commit":
			payload, err := decode[answerPayload](inbound.Payload)
			if err != nil {
				opErr = fmt.Errorf("invalid commit payload: %w", err)
				break
			}
			opErr = p.CommitAnswer(ctx, payload.Answer...)
		case "reload":
			opErr = p.ReloadQuizee(ctx)
		case "recheck":
			opErr = p.Recheck(ctx)
		default:
			opErr = errUnsupported
		}
		if opErr != nil {
			log.Debug("player operation failed", "type", inbound.Type, "error", opErr)
			out.pushError(opErr)
		}
	}
}
