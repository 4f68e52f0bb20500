package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quizee-service/internal/app"
	"quizee-service/internal/domain"
	"quizee-service/internal/infra/memory"
)

func TestQuizeeCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuizeeLoader: memory.NewQuizeeStore(sampleQuiz())}
	cache := NewQuizeeCache(newClient(mr), loader, time.Minute)

	quiz, err := cache.GetPublicQuizee(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quizee: %v", err)
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].ID != "q1" {
		t.Fatalf("unexpected quizee %+v", quiz)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quizee:quiz-1:public") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quizee:quiz-1:public"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	_, _ = cache.GetPublicQuizee(context.Background(), "quiz-1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}

	if err := cache.Invalidate(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("quizee:quiz-1:public") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestQuizeeCacheNeverStoresAnswers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewQuizeeCache(newClient(mr), memory.NewQuizeeStore(sampleQuiz()), time.Minute)
	if _, err := cache.GetPublicQuizee(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quizee: %v", err)
	}
	raw, err := mr.Get("quizee:quiz-1:public")
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	for _, forbidden := range []string{`"answers"`, `"answerTo"`} {
		if strings.Contains(raw, forbidden) {
			t.Fatalf("cached document leaks %s: %s", forbidden, raw)
		}
	}
}

func TestQuizeeCacheMissingQuizee(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewQuizeeCache(newClient(mr), memory.NewQuizeeStore(), time.Minute)
	if _, err := cache.GetPublicQuizee(context.Background(), "nope"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)

	store.Put(&app.Session{ID: "s1", Kind: app.EditorSession, QuizID: "quiz-1"})
	if !mr.Exists("quizee:session:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if v, _ := mr.Get("quizee:session:s1"); v != "editor:quiz-1" {
		t.Fatalf("unexpected marker %q", v)
	}

	mr.FastForward(30 * time.Second)
	if err := store.Touch(context.Background(), "s1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if ttl := mr.TTL("quizee:session:s1"); ttl != time.Minute {
		t.Fatalf("expected ttl refreshed, got %s", ttl)
	}

	store.Delete("s1")
	if mr.Exists("quizee:session:s1") {
		t.Fatalf("expected redis key to be removed")
	}
	if store.Count() != 0 {
		t.Fatalf("expected no sessions, got %d", store.Count())
	}
}

type countingLoader struct {
	QuizeeLoader
	calls int
}

func (l *countingLoader) GetQuizee(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizeeLoader.GetQuizee(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Info: domain.QuizInfo{ID: "quiz-1", Caption: "Arithmetic", QuestionsCount: 1},
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
		},
		Answers: []domain.Answer{{AnswerTo: "q1", Answer: []string{"o2"}}},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
