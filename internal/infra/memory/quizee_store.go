package memory

import (
	"context"
	"sort"
	"sync"

	"quizee-service/internal/domain"
)

// QuizeeStore is a map-backed document store for development and tests.
type QuizeeStore struct {
	mu      sync.RWMutex
	quizees map[string]storedQuizee
}

type storedQuizee struct {
	owner string
	quiz  domain.Quiz
}

// NewQuizeeStore seeds the store with unowned quizees; the first author to
// save one claims it.
func NewQuizeeStore(seed ...domain.Quiz) *QuizeeStore {
	s := &QuizeeStore{quizees: make(map[string]storedQuizee, len(seed))}
	for _, q := range seed {
		s.quizees[q.Info.ID] = storedQuizee{quiz: q.Clone()}
	}
	return s
}

func (s *QuizeeStore) GetQuizee(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.quizees[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return entry.quiz.Clone(), nil
}

func (s *QuizeeStore) ListQuizees(_ context.Context) ([]domain.QuizInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]domain.QuizInfo, 0, len(s.quizees))
	for _, entry := range s.quizees {
		infos = append(infos, entry.quiz.Info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Caption != infos[j].Caption {
			return infos[i].Caption < infos[j].Caption
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

func (s *QuizeeStore) SaveQuizee(_ context.Context, ownerID string, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.quizees[quiz.Info.ID]; ok && entry.owner != "" && entry.owner != ownerID {
		return domain.ErrNotOwner
	}
	s.quizees[quiz.Info.ID] = storedQuizee{owner: ownerID, quiz: quiz.Clone()}
	return nil
}
