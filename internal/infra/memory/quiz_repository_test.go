package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"confetti-quiz/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(map[string]domain.QuestionSet{
			"tata-surya": sampleQuestions(),
		}),
	}
	repo := NewQuestionRepository(loader, time.Minute)

	if _, err := repo.GetQuestions(context.Background(), "tata-surya"); err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	set, err := repo.GetQuestions(context.Background(), "tata-surya")
	if err != nil {
		t.Fatalf("get questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(set))
	}
}

func TestQuestionRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(map[string]domain.QuestionSet{
			"tata-surya": sampleQuestions(),
		}),
	}
	repo := NewQuestionRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuestions(context.Background(), "tata-surya")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuestions(context.Background(), "tata-surya")
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

func TestQuestionRepositoryNotFound(t *testing.T) {
	repo := NewQuestionRepository(NewStaticQuestionLoader(nil), time.Minute)
	if _, err := repo.GetQuestions(context.Background(), "missing"); !errors.Is(err, domain.ErrQuestionsNotFound) {
		t.Fatalf("expected ErrQuestionsNotFound, got %v", err)
	}
}

func TestQuestionRepositoryNormalizesBeforeCaching(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(map[string]domain.QuestionSet{
			"tata-surya": {
				{Text: "  Apa nama planet terbesar?  ", Answer: " JUPITER "},
				{Text: "Tanpa jawaban", Answer: "   "},
			},
			"kosong": {{Text: " ", Answer: "bumi"}},
		}),
	}
	repo := NewQuestionRepository(loader, time.Minute)

	set, err := repo.GetQuestions(context.Background(), "tata-surya")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	want := domain.QuestionSet{{Text: "Apa nama planet terbesar?", Answer: "jupiter"}}
	if !set.Equal(want) {
		t.Fatalf("expected normalized set %+v, got %+v", want, set)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.GetQuestions(context.Background(), "kosong"); !errors.Is(err, domain.ErrInvalidQuestionFormat) {
			t.Fatalf("expected ErrInvalidQuestionFormat, got %v", err)
		}
	}
	if loader.calls != 3 {
		t.Fatalf("expected unusable set to stay uncached, loader calls %d", loader.calls)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, slug string) (domain.QuestionSet, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, slug)
}

func sampleQuestions() domain.QuestionSet {
	return domain.QuestionSet{
		{Text: "Apa nama planet terbesar di tata surya kita?", Answer: "jupiter"},
		{Text: "Berapa jumlah planet dalam tata surya?", Answer: "delapan"},
	}
}
