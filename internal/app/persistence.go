package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"confetti-quiz/internal/domain"
)

// SnapshotStore abstracts the key/value backend progress is written to (memory, Redis, SQLite).
// Get returns nil, nil when the key is absent.
type SnapshotStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Persistence saves and restores progress for one page identity. Every operation is
// best-effort: backend and decode failures are logged and reported as absence.
type Persistence struct {
	store   SnapshotStore
	key     string
	timeout time.Duration
}

func NewPersistence(store SnapshotStore, identity domain.PageIdentity) *Persistence {
	return &Persistence{store: store, key: identity.StorageKey(), timeout: 2 * time.Second}
}

// Key returns the storage key.
func (p *Persistence) Key() string { return p.key }

func (p *Persistence) Save(snap domain.Snapshot) {
	if p == nil || p.store == nil {
		return
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		log.Printf("persistence: encode %s: %v", p.key, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.store.Put(ctx, p.key, data); err != nil {
		log.Printf("persistence: save %s: %v", p.key, err)
	}
}

func (p *Persistence) Load() (domain.Snapshot, bool) {
	if p == nil || p.store == nil {
		return domain.Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	data, err := p.store.Get(ctx, p.key)
	if err != nil {
		log.Printf("persistence: load %s: %v", p.key, err)
		return domain.Snapshot{}, false
	}
	if data == nil {
		return domain.Snapshot{}, false
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		log.Printf("persistence: discard %s: %v", p.key, err)
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (p *Persistence) Clear() {
	if p == nil || p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.store.Delete(ctx, p.key); err != nil {
		log.Printf("persistence: clear %s: %v", p.key, err)
	}
}

type snapshotWire struct {
	Questions    json.RawMessage `json:"questions"`
	UserAnswers  json.RawMessage `json:"userAnswers"`
	Correctness  json.RawMessage `json:"correctness"`
	CurrentIndex int             `json:"currentIndex"`
	SummaryShown bool            `json:"summaryShown"`
	Score        int             `json:"score"`
	Percentage   int             `json:"percentage"`
	SavedAt      time.Time       `json:"savedAt"`
}

// EncodeSnapshot writes answers and correctness as arrays of length N with null for
// unanswered slots.
func EncodeSnapshot(snap domain.Snapshot) ([]byte, error) {
	n := len(snap.Questions)
	answers := make([]*string, n)
	correct := make([]*bool, n)
	for i := 0; i < n; i++ {
		a, ok := snap.Answers[i]
		if !ok {
			continue
		}
		c := snap.Correct[i]
		answers[i] = &a
		correct[i] = &c
	}

	questions, err := json.Marshal([]domain.Question(snap.Questions))
	if err != nil {
		return nil, err
	}
	answersRaw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	correctRaw, err := json.Marshal(correct)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snapshotWire{
		Questions:    questions,
		UserAnswers:  answersRaw,
		Correctness:  correctRaw,
		CurrentIndex: snap.CurrentIndex,
		SummaryShown: snap.SummaryShown,
		Score:        snap.Score,
		Percentage:   snap.Percentage,
		SavedAt:      snap.SavedAt,
	})
}

// DecodeSnapshot validates the stored shape: questions, userAnswers and correctness must
// all be present JSON arrays and the question set must be valid.
func DecodeSnapshot(data []byte) (domain.Snapshot, error) {
	var wire snapshotWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	for name, raw := range map[string]json.RawMessage{
		"questions":   wire.Questions,
		"userAnswers": wire.UserAnswers,
		"correctness": wire.Correctness,
	} {
		if !isJSONArray(raw) {
			return domain.Snapshot{}, fmt.Errorf("decode snapshot: %s is not an array", name)
		}
	}

	var questions []domain.Question
	if err := json.Unmarshal(wire.Questions, &questions); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot questions: %w", err)
	}
	set := domain.QuestionSet(questions)
	if !ValidQuestionSet(set) {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: invalid question set")
	}
	var answers []*string
	if err := json.Unmarshal(wire.UserAnswers, &answers); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot answers: %w", err)
	}
	var correct []*bool
	if err := json.Unmarshal(wire.Correctness, &correct); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot correctness: %w", err)
	}

	snap := domain.Snapshot{
		Questions:    set,
		Answers:      make(map[int]string),
		Correct:      make(map[int]bool),
		CurrentIndex: wire.CurrentIndex,
		SummaryShown: wire.SummaryShown,
		Score:        wire.Score,
		Percentage:   wire.Percentage,
		SavedAt:      wire.SavedAt,
	}
	for i, a := range answers {
		if a == nil || i >= len(set) {
			continue
		}
		snap.Answers[i] = *a
		snap.Correct[i] = i < len(correct) && correct[i] != nil && *correct[i]
	}
	return snap, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
