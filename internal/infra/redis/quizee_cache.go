package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quizee-service/internal/domain"
)

// QuizeeLoader fetches full quizees from a backing store.
type QuizeeLoader interface {
	GetQuizee(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizeeCache keeps answerless quizees in Redis as JSON and falls back to a
// loader on cache miss:
//
//	SET quizee:{quizID}:public {json} EX ttl
//
// Answers never reach Redis.
type QuizeeCache struct {
	client *redis.Client
	loader QuizeeLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizeeCache(client *redis.Client, loader QuizeeLoader, ttl time.Duration) *QuizeeCache {
	return &QuizeeCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizeeCache) GetPublicQuizee(ctx context.Context, quizID string) (domain.PublicQuiz, error) {
	if quiz, ok := c.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check in case another caller filled it.
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := c.loader.GetQuizee(ctx, quizID)
		if err != nil {
			return domain.PublicQuiz{}, err
		}
		public := quiz.Public()
		raw, err := json.Marshal(public)
		if err != nil {
			return domain.PublicQuiz{}, fmt.Errorf("marshal quizee: %w", err)
		}
		// best-effort; a failed write only costs a reload
		_ = c.client.Set(ctx, c.key(quizID), raw, c.ttlWithJitter()).Err()
		return public, nil
	})
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	return result.(domain.PublicQuiz).Clone(), nil
}

func (c *QuizeeCache) Invalidate(ctx context.Context, quizID string) error {
	return c.client.Del(ctx, c.key(quizID)).Err()
}

func (c *QuizeeCache) cached(ctx context.Context, quizID string) (domain.PublicQuiz, bool) {
	raw, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		return domain.PublicQuiz{}, false
	}
	var quiz domain.PublicQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.PublicQuiz{}, false
	}
	return quiz, true
}

func (c *QuizeeCache) key(quizID string) string {
	return "quizee:" + quizID + ":public"
}

func (c *QuizeeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
