package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"confetti-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultsKey is the hash holding the site-wide results map: HSET confetti-quiz:results {slug} {json}
const ResultsKey = "confetti-quiz:results"

// ResultsMap is the secondary lookup tier for external results.
type ResultsMap struct {
	client *redis.Client
}

func NewResultsMap(client *redis.Client) *ResultsMap {
	return &ResultsMap{client: client}
}

// Lookup returns nil, nil when nothing is recorded for slug.
func (m *ResultsMap) Lookup(ctx context.Context, slug string) (json.RawMessage, error) {
	raw, err := m.client.HGet(ctx, ResultsKey, slug).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResultUnavailable, err)
	}
	return raw, nil
}

// Record stores a finished result for slug.
func (m *ResultsMap) Record(ctx context.Context, slug string, result domain.ExternalResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return m.client.HSet(ctx, ResultsKey, slug, data).Err()
}
