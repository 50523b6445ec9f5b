package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads question set JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, slug string) (domain.QuestionSet, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE slug=$1`, slug).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	set, err := app.ParseQuestions(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", slug, err)
	}
	return set, nil
}

// SaveQuestions upserts the question set for slug.
func (l *QuestionLoader) SaveQuestions(ctx context.Context, slug string, set domain.QuestionSet) error {
	if !app.ValidQuestionSet(set) {
		return domain.ErrInvalidQuestionFormat
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO question_sets (slug, data, updated_at) VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (slug) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`,
		slug, string(data))
	if err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	return nil
}
