package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question sets from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, slug string) (domain.QuestionSet, error)
}

// QuestionRepository caches normalized question sets per slug. Entries expire after the TTL
// plus up to 10% jitter; sets with no usable question are never cached.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, slug string) (domain.QuestionSet, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[slug]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.set, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[slug]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.set, nil
		}
		r.mu.RUnlock()

		set, err := loadNormalized(ctx, r.loader, slug)
		if err != nil {
			return domain.QuestionSet(nil), err
		}

		expiresAt := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[slug] = cachedQuestions{
			set:       set,
			expiresAt: expiresAt,
		}
		r.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.QuestionSet), nil
}

// loadNormalized loads a set and rejects it when normalization leaves nothing to ask.
func loadNormalized(ctx context.Context, loader QuestionLoader, slug string) (domain.QuestionSet, error) {
	set, err := loader.LoadQuestions(ctx, slug)
	if err != nil {
		return nil, err
	}
	set = app.NormalizeQuestions(set)
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no usable questions for %s", domain.ErrInvalidQuestionFormat, slug)
	}
	return set, nil
}

// StaticQuestionLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionLoader(sets map[string]domain.QuestionSet) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, slug string) (domain.QuestionSet, error) {
	if set, ok := l.sets[slug]; ok {
		return set, nil
	}
	return nil, domain.ErrQuestionsNotFound
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
