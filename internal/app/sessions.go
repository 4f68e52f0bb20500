package app

import (
	"context"
	"fmt"
	"time"

	"quizee-service/internal/domain"
	"quizee-service/internal/editor"
	"quizee-service/internal/player"
)

type SessionKind string

const (
	EditorSession SessionKind = "editor"
	PlayerSession SessionKind = "player"
)

// Session is one live editor or player, owned by a single connection.
// Exactly one of Editor and Player is set.
type Session struct {
	ID       string
	Kind     SessionKind
	QuizID   string
	OpenedAt time.Time

	Editor *editor.Store
	Player *player.Session
}

// SessionRepository abstracts where live sessions are tracked (in-memory,
// Redis-backed liveness, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
	Count() int
}

// OpenEditor starts an editor on quizID, or on a fresh quizee when quizID is
// empty.
func (s *QuizeeService) OpenEditor(ctx context.Context, quizID string) (*Session, error) {
	store := editor.New(editor.Options{
		Validator: s.validator,
		Matcher:   s.matcher,
		Logger:    s.log,
	})
	if quizID == "" {
		store.Create()
	} else {
		quiz, err := s.store.GetQuizee(ctx, quizID)
		if err != nil {
			return nil, fmt.Errorf("open editor: %w", err)
		}
		store.Load(quiz)
	}

	session := &Session{
		ID:       domain.NewID(),
		Kind:     EditorSession,
		QuizID:   quizID,
		OpenedAt: time.Now(),
		Editor:   store,
	}
	s.sessions.Put(session)
	s.log.Debug("editor session opened", "sessionId", session.ID, "quizId", quizID)
	return session, nil
}

// OpenPlayer starts a player session and, when quizID is set, loads it.
func (s *QuizeeService) OpenPlayer(ctx context.Context, quizID string) (*Session, error) {
	p := player.NewSession(s.public, s, s.log)
	if quizID != "" {
		if err := p.LoadQuizee(ctx, quizID); err != nil {
			return nil, err
		}
	}
	session := &Session{
		ID:       domain.NewID(),
		Kind:     PlayerSession,
		QuizID:   quizID,
		OpenedAt: time.Now(),
		Player:   p,
	}
	s.sessions.Put(session)
	s.log.Debug("player session opened", "sessionId", session.ID, "quizId", quizID)
	return session, nil
}

type sessionToucher interface {
	Touch(ctx context.Context, id string) error
}

// TouchSession marks a session as still in use, for repositories that track
// liveness.
func (s *QuizeeService) TouchSession(ctx context.Context, id string) {
	toucher, ok := s.sessions.(sessionToucher)
	if !ok {
		return
	}
	if err := toucher.Touch(ctx, id); err != nil {
		s.log.Warn("touch session failed", "sessionId", id, "error", err)
	}
}

func (s *QuizeeService) Session(id string) (*Session, bool) {
	return s.sessions.Get(id)
}

func (s *QuizeeService) CloseSession(id string) {
	s.sessions.Delete(id)
}

func (s *QuizeeService) ActiveSessions() int {
	return s.sessions.Count()
}
