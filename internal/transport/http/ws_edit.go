package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"quizee-service/internal/app"
	"quizee-service/internal/auth"
	"quizee-service/internal/binding"
	"quizee-service/internal/domain"
	"quizee-service/internal/editor"
	"quizee-service/internal/logger"
)

// EditHandler runs one editor session per websocket.
type EditHandler struct {
	service  *app.QuizeeService
	tokens   *auth.Tokens
	debounce time.Duration
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewEditHandler(service *app.QuizeeService, tokens *auth.Tokens, debounce time.Duration, log *logger.Logger) *EditHandler {
	return &EditHandler{
		service:  service,
		tokens:   tokens,
		debounce: debounce,
		log:      logger.OrNop(log),
		upgrader: newUpgrader(),
	}
}

type modifyPayload struct {
	Info      *domain.QuizInfo  `json:"info"`
	Questions []domain.Question `json:"questions"`
	Answers   []domain.Answer   `json:"answers"`
}

type questionPayload struct {
	Index    int                 `json:"index"`
	From     int                 `json:"from"`
	To       int                 `json:"to"`
	Value    string              `json:"value"`
	OptionID string              `json:"optionId"`
	Type     domain.QuestionType `json:"type"`
	Answer   []string            `json:"answer"`
	Config   domain.AnswerConfig `json:"config"`
	Answered int                 `json:"answered"`
	Path     string              `json:"path"`
}

type loginPayload struct {
	Token string `json:"token"`
}

type validityPayload struct {
	Index  int             `json:"index"`
	Path   string          `json:"path"`
	Result map[string]bool `json:"result"`
}

type publishedPayload struct {
	QuizID string `json:"quizId"`
}

type createdPayload struct {
	Index int `json:"index"`
}

// ServeWS opens an editor on ?quizId= (a fresh quizee when empty). An
// optional ?token= or bearer header signs the author in up front; otherwise
// publishing asks for a login over the socket.
//
// Outbound: quizee, errors, question, auth, login, validity, published,
// created, option and error messages.
func (h *EditHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}

	session, err := h.service.OpenEditor(r.Context(), quizID)
	if err != nil {
		_, status := classify(err)
		http.Error(w, err.Error(), status)
		return
	}
	defer h.service.CloseSession(session.ID)

	prompter := &wsPrompter{answers: make(chan loginAnswer, 1)}
	gate := auth.NewGate(h.tokens, prompter)
	if token != "" {
		if _, err := gate.Authenticate(token); err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := h.log.With("sessionId", session.ID, "quizId", quizID)
	out := newOutbox(conn, log)
	defer out.close()
	prompter.out = out

	store := session.Editor
	form := binding.NewForm(store, h.debounce)
	defer form.Close()

	stops := []func(){
		forward(out, store.Get(), "quizee"),
		forward(out, store.Errors(), "errors"),
		forward(out, store.CurrentQuestion(), "question"),
		forward(out, gate.IsAuthenticated(), "auth"),
	}
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads run on their own goroutine so that a login answer can reach a
	// prompt while a command is blocked on it.
	commands := make(chan inboundMessage)
	go func() {
		defer close(commands)
		defer cancel()
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				return
			}
			if prompter.offer(inbound) {
				continue
			}
			select {
			case commands <- inbound:
			case <-ctx.Done():
				return
			}
		}
	}()

	ed := &editSession{store: store, form: form, gate: gate, service: h.service, out: out}
	for inbound := range commands {
		h.service.TouchSession(ctx, session.ID)
		if err := ed.handle(ctx, inbound); err != nil {
			log.Debug("editor operation failed", "type", inbound.Type, "error", err)
			out.pushError(err)
		}
	}
	if err := form.Flush(); err != nil {
		log.Warn("flush pending edits failed", "error", err)
	}
}

type editSession struct {
	store   *editor.Store
	form    *binding.Form
	gate    *auth.Gate
	service *app.QuizeeService
	out     *outbox
}

func (e *editSession) handle(ctx context.Context, inbound inboundMessage) error {
	switch inbound.Type {
	case "modify":
		p, err := decode[modifyPayload](inbound.Payload)
		if err != nil {
			return fmt.Errorf("invalid modify payload: %w", err)
		}
		return e.store.Modify(editor.QuizPatch{Info: p.Info, Questions: p.Questions, Answers: p.Answers})
	case "login":
		p, err := decode[loginPayload](inbound.Payload)
		if err != nil {
			return fmt.Errorf("invalid login payload: %w", err)
		}
		_, err = e.gate.Authenticate(p.Token)
		return err
	case "logout":
		e.gate.LogOut()
		return nil
	case "publish":
		return e.publish(ctx)
	case "flush":
		return e.form.Flush()
	}

	p, err := decode[questionPayload](inbound.Payload)
	if err != nil {
		return fmt.Errorf("invalid %s payload: %w", inbound.Type, err)
	}
	switch inbound.Type {
	case "setCaption":
		field, err := e.form.Caption()
		if err != nil {
			return err
		}
		return field.Set(p.Value)
	case "setQuestionCaption":
		field, err := e.form.QuestionCaption(p.Index)
		if err != nil {
			return err
		}
		return field.Set(p.Value)
	case "setOptionValue":
		options, err := e.form.Options(p.Index)
		if err != nil {
			return err
		}
		field, ok := options.Field(p.OptionID)
		if !ok {
			return fmt.Errorf("option %q: %w", p.OptionID, domain.ErrInvalidPath)
		}
		return field.Set(p.Value)
	case "setQuestionType":
		return e.store.SetQuestionType(p.Index, p.Type)
	case "setAnswer":
		return e.store.SetAnswer(p.Index, p.Answer)
	case "setAnswerConfig":
		return e.store.SetAnswerConfig(p.Index, p.Config)
	case "addAnswerOption":
		opt, err := e.store.AddAnswerOption(p.Index, p.Value)
		if err != nil {
			return err
		}
		e.out.push("option", opt)
		return nil
	case "removeAnswerOption":
		return e.store.RemoveAnswerOption(p.Index, p.OptionID)
	case "createQuestion":
		index, err := e.store.CreateQuestion()
		if err != nil {
			return err
		}
		e.out.push("created", createdPayload{Index: index})
		return nil
	case "removeQuestion":
		return e.store.RemoveQuestion(p.Index)
	case "moveQuestion":
		return e.store.MoveQuestion(p.From, p.To)
	case "preview":
		return e.store.SetPreviewProgress(p.Answered)
	case "validate":
		return e.validate(ctx, p.Index, p.Path)
	}
	return errUnsupported
}

func (e *editSession) validate(ctx context.Context, index int, path string) error {
	v, err := e.form.Validator(index, path)
	if err != nil {
		return err
	}
	defer v.Close()
	result, err := v.Once(ctx)
	if err != nil {
		return err
	}
	e.out.push("validity", validityPayload{Index: index, Path: path, Result: result})
	return nil
}

func (e *editSession) publish(ctx context.Context) error {
	if err := e.form.Flush(); err != nil {
		return err
	}
	quiz, ok := e.store.Snapshot()
	if !ok {
		return domain.ErrNotLoaded
	}
	id, err := e.service.PublishQuizee(ctx, e.gate, quiz)
	if err != nil {
		return err
	}
	if quiz.Info.ID != id {
		if err := e.store.UpdateInfo(func(info *domain.QuizInfo) { info.ID = id }); err != nil {
			return err
		}
	}
	e.out.push("published", publishedPayload{QuizID: id})
	return nil
}

type loginAnswer struct {
	token     string
	dismissed bool
}

// wsPrompter asks the client for a token with a "login" message and waits
// for a "login" or "dismissLogin" reply.
type wsPrompter struct {
	out     *outbox
	answers chan loginAnswer
	pending atomic.Bool
}

func (p *wsPrompter) Prompt(ctx context.Context) (string, error) {
	p.pending.Store(true)
	defer p.pending.Store(false)
	p.out.push("login", nil)
	select {
	case a := <-p.answers:
		if a.dismissed {
			return "", auth.ErrPromptDismissed
		}
		return a.token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// offer hands a login reply to a waiting prompt. It reports whether the
// message was consumed.
func (p *wsPrompter) offer(msg inboundMessage) bool {
	if !p.pending.Load() {
		return false
	}
	var answer loginAnswer
	switch msg.Type {
	case "login":
		payload, err := decode[loginPayload](msg.Payload)
		if err != nil {
			return false
		}
		answer.token = payload.Token
	case "dismissLogin":
		answer.dismissed = true
	default:
		return false
	}
	select {
	case p.answers <- answer:
		return true
	default:
		return false
	}
}
