package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question sets from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, slug string) (domain.QuestionSet, error)
}

// QuestionRepository caches question sets in Redis and falls back to a loader on cache miss.
// Sets are stored as: SET quiz:{slug}:questions <json array>
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, slug string) (domain.QuestionSet, error) {
	key := r.questionsKey(slug)
	if set, ok := r.cached(ctx, key); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := r.cached(ctx, key); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuestions(ctx, slug)
		if err != nil {
			return domain.QuestionSet(nil), err
		}
		if set = app.NormalizeQuestions(set); len(set) == 0 {
			return domain.QuestionSet(nil), fmt.Errorf("%w: no usable questions for %s", domain.ErrInvalidQuestionFormat, slug)
		}

		data, err := json.Marshal(set)
		if err != nil {
			return set, nil
		}
		if err := r.client.Set(ctx, key, data, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("redis: cache questions %s: %v", slug, err)
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.QuestionSet), nil
}

func (r *QuestionRepository) cached(ctx context.Context, key string) (domain.QuestionSet, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(data, &set); err != nil || len(set) == 0 {
		return nil, false
	}
	return set, true
}

func (r *QuestionRepository) questionsKey(slug string) string {
	return "quiz:" + slug + ":questions"
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
