package app

import (
	"context"
	"fmt"

	"quizee-service/internal/auth"
	"quizee-service/internal/domain"
	"quizee-service/internal/logger"
	"quizee-service/internal/validation"
)

// QuizeeStore persists full quizee documents, answers included.
type QuizeeStore interface {
	GetQuizee(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizees(ctx context.Context) ([]domain.QuizInfo, error)
	SaveQuizee(ctx context.Context, ownerID string, quiz domain.Quiz) error
}

// PublicQuizeeSource serves the answerless documents players see, usually
// from a cache in front of the QuizeeStore.
type PublicQuizeeSource interface {
	GetPublicQuizee(ctx context.Context, quizID string) (domain.PublicQuiz, error)
	Invalidate(ctx context.Context, quizID string) error
}

// Authenticator resolves the caller of an operation that needs a signed-in
// author. auth.Gate is the usual implementation.
type Authenticator interface {
	Require(ctx context.Context) (auth.Identity, error)
}

type Options struct {
	Logger  *logger.Logger
	Matcher validation.Matcher
}

// QuizeeService contains the quizee use cases: browsing, publishing, scoring
// and opening editor/player sessions.
type QuizeeService struct {
	store     QuizeeStore
	public    PublicQuizeeSource
	sessions  SessionRepository
	validator *validation.Validator
	matcher   validation.Matcher
	log       *logger.Logger
}

func NewQuizeeService(store QuizeeStore, public PublicQuizeeSource, sessions SessionRepository, opts Options) *QuizeeService {
	return &QuizeeService{
		store:     store,
		public:    public,
		sessions:  sessions,
		validator: validation.New(),
		matcher:   opts.Matcher,
		log:       logger.OrNop(opts.Logger),
	}
}

func (s *QuizeeService) GetQuizee(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.store.GetQuizee(ctx, quizID)
}

func (s *QuizeeService) GetPublicQuizee(ctx context.Context, quizID string) (domain.PublicQuiz, error) {
	return s.public.GetPublicQuizee(ctx, quizID)
}

func (s *QuizeeService) ListQuizees(ctx context.Context) ([]domain.QuizInfo, error) {
	return s.store.ListQuizees(ctx)
}

// PublishQuizee saves a valid quizee on behalf of the signed-in author and
// returns its id. Invalid documents come back as *domain.ValidationFailedError.
func (s *QuizeeService) PublishQuizee(ctx context.Context, authn Authenticator, quiz domain.Quiz) (string, error) {
	identity, err := authn.Require(ctx)
	if err != nil {
		return "", err
	}

	quiz = quiz.Clone()
	if errs := s.validator.Validate(quiz); len(errs) > 0 {
		return "", &domain.ValidationFailedError{Errors: errs}
	}
	if quiz.Info.ID == "" {
		quiz.Info.ID = domain.NewID()
	}

	if err := s.store.SaveQuizee(ctx, identity.UserID, quiz); err != nil {
		return "", fmt.Errorf("save quizee %s: %w", quiz.Info.ID, err)
	}
	if err := s.public.Invalidate(ctx, quiz.Info.ID); err != nil {
		s.log.Warn("invalidate public quizee failed", "quizId", quiz.Info.ID, "error", err)
	}
	s.log.Info("quizee published", "quizId", quiz.Info.ID, "owner", identity.UserID, "questions", len(quiz.Questions))
	return quiz.Info.ID, nil
}
