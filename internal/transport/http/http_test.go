package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"quizee-service/internal/app"
	"quizee-service/internal/auth"
	"quizee-service/internal/domain"
	"quizee-service/internal/infra/memory"
)

type testEnv struct {
	server *httptest.Server
	tokens *auth.Tokens
	store  *memory.QuizeeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewQuizeeStore(sampleQuiz())
	service := app.NewQuizeeService(store, memory.NewPublicCache(store, time.Minute), memory.NewSessionStore(), app.Options{})
	tokens := auth.NewTokens("test-secret", time.Hour)
	server := httptest.NewServer(NewRouter(service, RouterOptions{Tokens: tokens}))
	t.Cleanup(server.Close)
	return &testEnv{server: server, tokens: tokens, store: store}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	raw, err := e.tokens.Issue(auth.Identity{UserID: "author-1", Name: "Alice"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return raw
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + e.server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPlayFlowScoresAnswers(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/play?quizId=quiz-1")

	var question domain.Question
	decodePayload(t, readUntil(t, conn, "question"), &question)
	if question.ID != "q1" {
		t.Fatalf("expected q1 first, got %s", question.ID)
	}

	send(t, conn, "commit", map[string]any{"answer": []string{}})
	var failure errorPayload
	decodePayload(t, readUntil(t, conn, "error"), &failure)
	if failure.Code != "conflict" {
		t.Fatalf("expected conflict for empty commit, got %+v", failure)
	}

	send(t, conn, "save", map[string]any{"answer": []string{"o2"}})
	send(t, conn, "commit", nil)
	decodePayload(t, readUntil(t, conn, "question"), &question)
	if question.ID != "q2" {
		t.Fatalf("expected q2 next, got %s", question.ID)
	}

	send(t, conn, "commit", map[string]any{"answer": []string{"  paris "}})
	var result domain.Result
	decodePayload(t, readUntil(t, conn, "result"), &result)
	if result.Score != 2 || result.Total != 2 || result.QuizID != "quiz-1" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPlayUnknownQuizee(t *testing.T) {
	env := newTestEnv(t)
	u := "ws" + env.server.URL[len("http"):] + "/ws/play?quizId=missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestEditPublishPromptsForLogin(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/edit")

	var quiz domain.Quiz
	decodePayload(t, readUntil(t, conn, "quizee"), &quiz)
	if quiz.Info.Caption != domain.DefaultCaption || len(quiz.Questions) != 1 {
		t.Fatalf("expected default quizee, got %+v", quiz.Info)
	}

	send(t, conn, "publish", nil)
	readUntil(t, conn, "login")
	send(t, conn, "dismissLogin", nil)
	var failure errorPayload
	decodePayload(t, readUntil(t, conn, "error"), &failure)
	if failure.Code != "auth_required" {
		t.Fatalf("expected auth_required, got %+v", failure)
	}

	draft := sampleQuiz()
	draft.Info.ID = ""
	draft.Info.Caption = "Draft"
	send(t, conn, "modify", map[string]any{"info": draft.Info, "questions": draft.Questions, "answers": draft.Answers})
	send(t, conn, "setCaption", map[string]any{"value": "Geography"})
	for {
		decodePayload(t, readUntil(t, conn, "quizee"), &quiz)
		if quiz.Info.Caption == "Geography" {
			break
		}
	}

	send(t, conn, "publish", nil)
	readUntil(t, conn, "login")
	send(t, conn, "login", map[string]any{"token": env.token(t)})
	var published publishedPayload
	decodePayload(t, readUntil(t, conn, "published"), &published)
	if published.QuizID == "" {
		t.Fatalf("expected an id to be assigned")
	}

	stored, err := env.store.GetQuizee(context.Background(), published.QuizID)
	if err != nil {
		t.Fatalf("published quizee not stored: %v", err)
	}
	if stored.Info.Caption != "Geography" || len(stored.Questions) != 2 {
		t.Fatalf("unexpected stored quizee %+v", stored.Info)
	}
}

func TestEditPublishInvalidReturnsErrors(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/edit?token="+env.token(t))

	var authed bool
	decodePayload(t, readUntil(t, conn, "auth"), &authed)
	if !authed {
		t.Fatalf("expected token in the query to sign in")
	}

	send(t, conn, "validate", map[string]any{"index": 0, "path": "question.caption"})
	var validity validityPayload
	decodePayload(t, readUntil(t, conn, "validity"), &validity)
	if !validity.Result["string.required"] {
		t.Fatalf("expected empty caption to be required, got %+v", validity)
	}

	send(t, conn, "publish", nil)
	var failure errorPayload
	decodePayload(t, readUntil(t, conn, "error"), &failure)
	if failure.Code != "invalid" || len(failure.Errors) == 0 {
		t.Fatalf("expected validation errors, got %+v", failure)
	}

	send(t, conn, "validate", map[string]any{"index": 0, "path": "caption"})
	decodePayload(t, readUntil(t, conn, "error"), &failure)
	if failure.Code != "bad_request" {
		t.Fatalf("expected bad_request for an unscoped path, got %+v", failure)
	}
}

func TestEditQuestionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/edit?quizId=quiz-1")

	send(t, conn, "createQuestion", nil)
	var created createdPayload
	decodePayload(t, readUntil(t, conn, "created"), &created)
	if created.Index != 2 {
		t.Fatalf("expected new question at index 2, got %d", created.Index)
	}

	send(t, conn, "addAnswerOption", map[string]any{"index": 2, "value": "Yes"})
	var opt domain.AnswerOption
	decodePayload(t, readUntil(t, conn, "option"), &opt)
	if opt.ID == "" || opt.Value != "Yes" {
		t.Fatalf("unexpected option %+v", opt)
	}

	send(t, conn, "removeQuestion", map[string]any{"index": 2})
	var quiz domain.Quiz
	for {
		decodePayload(t, readUntil(t, conn, "quizee"), &quiz)
		if len(quiz.Questions) == 2 {
			break
		}
	}
	if quiz.Info.QuestionsCount != 2 || len(quiz.Answers) != 2 {
		t.Fatalf("expected counts to stay aligned, got %+v", quiz.Info)
	}

	send(t, conn, "bogus", nil)
	var failure errorPayload
	decodePayload(t, readUntil(t, conn, "error"), &failure)
	if !strings.Contains(failure.Message, "unsupported") {
		t.Fatalf("expected unsupported message error, got %+v", failure)
	}
}

func TestRESTEndpoints(t *testing.T) {
	env := newTestEnv(t)
	base := env.server.URL

	resp, err := http.Get(base + "/quizees/quiz-1")
	if err != nil {
		t.Fatalf("get quizee: %v", err)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, leaked := body["answers"]; leaked {
		t.Fatalf("public quizee must not carry answers")
	}

	resp, _ = http.Get(base + "/quizees/missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = http.Get(base + "/quizees")
	var infos []domain.QuizInfo
	_ = json.NewDecoder(resp.Body).Decode(&infos)
	resp.Body.Close()
	if len(infos) != 1 || infos[0].ID != "quiz-1" {
		t.Fatalf("unexpected list %+v", infos)
	}

	draft := sampleQuiz()
	draft.Info.ID = ""
	raw, _ := json.Marshal(draft)

	resp, _ = http.Post(base+"/quizees", "application/json", bytes.NewReader(raw))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	invalid := draft
	invalid.Info.Caption = ""
	invalidRaw, _ := json.Marshal(invalid)
	resp = postWithToken(t, base+"/quizees", env.token(t), invalidRaw)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an invalid quizee, got %d", resp.StatusCode)
	}

	resp = postWithToken(t, base+"/quizees", env.token(t), raw)
	var published publishResponse
	_ = json.NewDecoder(resp.Body).Decode(&published)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || published.QuizID == "" {
		t.Fatalf("expected 201 with id, got %d %+v", resp.StatusCode, published)
	}

	check, _ := json.Marshal(checkRequest{Answers: []domain.PlayerAnswer{
		{AnswerTo: "q1", Answer: []string{"o1"}},
		{AnswerTo: "q2", Answer: []string{"PARIS"}},
	}})
	resp, _ = http.Post(base+"/quizees/quiz-1/check", "application/json", bytes.NewReader(check))
	var result domain.Result
	_ = json.NewDecoder(resp.Body).Decode(&result)
	resp.Body.Close()
	if result.Score != 1 || result.Total != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func postWithToken(t *testing.T, url, token string, body []byte) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	for i := 0; i < 50; i++ {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", typ, err)
		}
		if msg.Type == typ {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message within 50 messages", typ)
	return nil
}

func decodePayload(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode payload %s: %v", raw, err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Info: domain.QuizInfo{ID: "quiz-1", Caption: "Capitals", QuestionsCount: 2},
		Questions: []domain.Question{
			{
				ID:      "q1",
				Caption: "What is 2 + 2?",
				Type:    domain.OneTrue,
				AnswerOptions: []domain.AnswerOption{
					{ID: "o1", Value: "3"},
					{ID: "o2", Value: "4"},
				},
			},
			{
				ID:            "q2",
				Caption:       "Capital of France?",
				Type:          domain.WriteAnswer,
				AnswerOptions: []domain.AnswerOption{{ID: "o3", Value: ""}},
			},
		},
		Answers: []domain.Answer{
			{AnswerTo: "q1", Answer: []string{"o2"}},
			{AnswerTo: "q2", Answer: []string{"Paris"}},
		},
	}
}
