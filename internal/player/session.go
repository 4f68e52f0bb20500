package player

import (
	"context"
	"fmt"
	"sync"

	"quizee-service/internal/domain"
	"quizee-service/internal/logger"
	"quizee-service/internal/stream"
)

type State string

const (
	StateIdle            State = "idle"
	StateLoadingQuizee   State = "loadingQuizee"
	StateRunning         State = "running"
	StateCheckingResults State = "checkingResults"
	StateGotResults      State = "gotResults"
)

// QuizeeSource fetches the answerless document a player sees.
type QuizeeSource interface {
	GetPublicQuizee(ctx context.Context, quizID string) (domain.PublicQuiz, error)
}

// Scorer checks a complete answer set.
type Scorer interface {
	CheckAnswers(ctx context.Context, quizID string, answers []domain.PlayerAnswer) (domain.Result, error)
}

// Progress is how far a player has got.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// Session sequences question delivery, answer collection and scoring for one
// player. Everything it hands out is a copy.
type Session struct {
	source QuizeeSource
	scorer Scorer
	log    *logger.Logger

	mu        sync.Mutex
	quiz      *domain.PublicQuiz
	answers   []domain.PlayerAnswer
	staged    []string
	canCommit bool
	state     State

	quizee   *stream.Replay[domain.PublicQuiz]
	question *stream.Replay[domain.Question]
	states   *stream.Replay[State]
	commit   *stream.Replay[bool]
	results  *stream.Replay[domain.Result]
	progress *stream.Replay[Progress]
}

func NewSession(source QuizeeSource, scorer Scorer, log *logger.Logger) *Session {
	s := &Session{
		source:   source,
		scorer:   scorer,
		log:      logger.OrNop(log),
		state:    StateIdle,
		quizee:   stream.NewReplayWithCopy(domain.PublicQuiz.Clone),
		question: stream.NewReplayWithCopy(domain.Question.Clone),
		states:   stream.NewReplay[State](),
		commit:   stream.NewReplay[bool](),
		results:  stream.NewReplay[domain.Result](),
		progress: stream.NewReplay[Progress](),
	}
	s.states.Publish(StateIdle)
	s.commit.Publish(false)
	return s
}

func (s *Session) Quizee() stream.Source[domain.PublicQuiz] { return s.quizee }
func (s *Session) Question() stream.Source[domain.Question] { return s.question }
func (s *Session) State() stream.Source[State] { return s.states }
func (s *Session) CanCommit() stream.Source[bool] { return s.commit }
func (s *Session) Result() stream.Source[domain.Result] { return s.results }
func (s *Session) Progress() stream.Source[Progress] { return s.progress }

// Answers returns a copy of the answers committed so far.
func (s *Session) Answers() []domain.PlayerAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAnswers(s.answers)
}

// CurrentState reports the state without subscribing.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadQuizee fetches quizID (or reuses the held document when the id is
// unchanged), resets all answers and starts from the first question. On fetch
// failure the held document is kept and the error is returned.
func (s *Session) LoadQuizee(ctx context.Context, quizID string) error {
	s.mu.Lock()
	var held *domain.PublicQuiz
	if s.quiz != nil && s.quiz.Info.ID == quizID {
		c := s.quiz.Clone()
		held = &c
	}
	previous := s.state
	s.state = StateLoadingQuizee
	s.mu.Unlock()
	s.states.Publish(StateLoadingQuizee)

	quiz, err := s.fetch(ctx, quizID, held)
	if err != nil {
		s.mu.Lock()
		s.state = previous
		s.mu.Unlock()
		s.states.Publish(previous)
		s.log.Warn("load quizee failed", "quizId", quizID, "error", err)
		return err
	}

	s.mu.Lock()
	s.quiz = &quiz
	s.answers = nil
	s.staged = nil
	s.canCommit = false
	s.state = StateRunning
	progress := s.progressLocked()
	first, hasFirst := s.currentQuestionLocked()
	s.mu.Unlock()

	s.quizee.Publish(quiz)
	if hasFirst {
		s.question.Publish(first)
	}
	s.commit.Publish(false)
	s.progress.Publish(progress)
	s.states.Publish(StateRunning)
	s.log.Debug("quizee loaded", "quizId", quizID, "questions", len(quiz.Questions))
	return nil
}

// ReloadQuizee restarts the held quizee.
func (s *Session) ReloadQuizee(ctx context.Context) error {
	s.mu.Lock()
	if s.quiz == nil {
		s.mu.Unlock()
		return domain.ErrNotLoaded
	}
	id := s.quiz.Info.ID
	s.mu.Unlock()
	return s.LoadQuizee(ctx, id)
}

// SaveAnswer stages a candidate answer for the current question.
func (s *Session) SaveAnswer(value []string) {
	s.mu.Lock()
	s.staged = append([]string(nil), value...)
	s.canCommit = commitAllowed(s.staged)
	allowed := s.canCommit
	s.mu.Unlock()
	s.commit.Publish(allowed)
}

// CommitAnswer submits value (or the staged answer when value is empty) for
// the current question and advances. Committing the last answer checks the
// results.
func (s *Session) CommitAnswer(ctx context.Context, value ...string) error {
	s.mu.Lock()
	if s.quiz == nil {
		s.mu.Unlock()
		return domain.ErrNotLoaded
	}
	if s.state != StateRunning {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("commit in state %s: %w", state, domain.ErrCommitNotAllowed)
	}
	answer := s.staged
	if len(value) > 0 {
		answer = value
	}
	if !commitAllowed(answer) {
		s.mu.Unlock()
		return domain.ErrCommitNotAllowed
	}
	current, _ := s.currentQuestionLocked()
	s.answers = append(s.answers, domain.PlayerAnswer{
		AnswerTo: current.ID,
		Answer:   append([]string(nil), answer...),
	})
	s.staged = nil
	s.canCommit = false
	progress := s.progressLocked()
	finished := len(s.answers) == s.quiz.Info.QuestionsCount || len(s.answers) >= len(s.quiz.Questions)
	next, hasNext := s.currentQuestionLocked()
	if finished {
		s.state = StateCheckingResults
	}
	s.mu.Unlock()

	s.commit.Publish(false)
	s.progress.Publish(progress)
	if !finished {
		if hasNext {
			s.question.Publish(next)
		}
		return nil
	}
	s.states.Publish(StateCheckingResults)
	return s.check(ctx)
}

// Recheck retries scoring after a failed check.
func (s *Session) Recheck(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateCheckingResults {
		return domain.ErrResultsPending
	}
	return s.check(ctx)
}

func (s *Session) check(ctx context.Context) error {
	s.mu.Lock()
	quizID := s.quiz.Info.ID
	answers := cloneAnswers(s.answers)
	s.mu.Unlock()

	result, err := s.scorer.CheckAnswers(ctx, quizID, answers)
	if err != nil {
		s.log.Error("check answers failed", "quizId", quizID, "error", err)
		return fmt.Errorf("check answers: %w", err)
	}

	s.mu.Lock()
	s.state = StateGotResults
	s.mu.Unlock()

	s.results.Publish(result)
	s.states.Publish(StateGotResults)
	s.log.Info("quizee finished", "quizId", quizID, "score", result.Score, "total", result.Total)
	return nil
}

func (s *Session) fetch(ctx context.Context, quizID string, held *domain.PublicQuiz) (domain.PublicQuiz, error) {
	if held != nil {
		return *held, nil
	}
	quiz, err := s.source.GetPublicQuizee(ctx, quizID)
	if err != nil {
		return domain.PublicQuiz{}, fmt.Errorf("load quizee %s: %w", quizID, err)
	}
	if quiz.Info.ID == "" {
		quiz.Info.ID = quizID
	}
	return quiz.Clone(), nil
}

func (s *Session) currentQuestionLocked() (domain.Question, bool) {
	if s.quiz == nil || len(s.answers) >= len(s.quiz.Questions) {
		return domain.Question{}, false
	}
	return s.quiz.Questions[len(s.answers)], true
}

func (s *Session) progressLocked() Progress {
	if s.quiz == nil {
		return Progress{}
	}
	return Progress{Answered: len(s.answers), Total: len(s.quiz.Questions)}
}

func commitAllowed(value []string) bool {
	return len(value) > 0 && value[0] != ""
}

func cloneAnswers(answers []domain.PlayerAnswer) []domain.PlayerAnswer {
	out := make([]domain.PlayerAnswer, len(answers))
	for i, a := range answers {
		out[i] = domain.PlayerAnswer{AnswerTo: a.AnswerTo, Answer: append([]string(nil), a.Answer...)}
	}
	return out
}
