package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quizee-service/internal/domain"
)

// QuizeeLoader fetches full quizees from a backing store.
type QuizeeLoader interface {
	GetQuizee(ctx context.Context, quizID string) (domain.Quiz, error)
}

// PublicCache caches answerless quizees with TTL to avoid repeated store hits.
type PublicCache struct {
	loader QuizeeLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuizee
}

type cachedQuizee struct {
	quiz      domain.PublicQuiz
	expiresAt time.Time
}

func NewPublicCache(loader QuizeeLoader, ttl time.Duration) *PublicCache {
	return &PublicCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuizee),
	}
}

func (c *PublicCache) GetPublicQuizee(ctx context.Context, quizID string) (domain.PublicQuiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := c.loader.GetQuizee(ctx, quizID)
		if err != nil {
			return domain.PublicQuiz{}, err
		}
		public := quiz.Public()

		c.mu.Lock()
		c.cache[quizID] = cachedQuizee{
			quiz:      public,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return public, nil
	})
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	return result.(domain.PublicQuiz).Clone(), nil
}

// Invalidate drops a cached quizee so the next read reloads it.
func (c *PublicCache) Invalidate(_ context.Context, quizID string) error {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
	return nil
}

func (c *PublicCache) lookup(quizID string) (domain.PublicQuiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.PublicQuiz{}, false
	}
	return entry.quiz.Clone(), true
}

func (c *PublicCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
