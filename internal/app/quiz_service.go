package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"confetti-quiz/internal/domain"
)

// QuestionRepository loads question sets published for a page slug (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, slug string) (domain.QuestionSet, error)
}

// ResultResolver looks up an authoritative result recorded for a page.
type ResultResolver interface {
	Resolve(ctx context.Context, identity domain.PageIdentity) (domain.ExternalResult, bool)
}

// Options tunes controllers created by the service.
type Options struct {
	Policy         NavigationPolicy
	Autoload       bool
	Intensity      float64
	ResolveTimeout time.Duration
}

// QuizService attaches quiz widgets to pages and wires their collaborators.
type QuizService struct {
	store     SnapshotStore
	questions QuestionRepository
	resolver  ResultResolver
	opts      Options
	pending   sync.WaitGroup
}

// NewQuizService builds a service; questions and resolver may be nil.
func NewQuizService(store SnapshotStore, questions QuestionRepository, resolver ResultResolver, opts Options) *QuizService {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 5 * time.Second
	}
	return &QuizService{store: store, questions: questions, resolver: resolver, opts: opts}
}

// AttachRequest describes one widget attachment.
type AttachRequest struct {
	Path string
	// Questions and DataQuestions are the two accepted spellings of an inline payload.
	Questions     string
	DataQuestions string
	Emitter       Emitter
	// Resolver overrides the service resolver for this attachment, e.g. for a widget
	// served from a different base URL.
	Resolver ResultResolver
}

// Attach creates a controller for the page, hydrating saved progress when autoload is on,
// and starts resolving the external result in the background. ctx bounds that resolution.
func (s *QuizService) Attach(ctx context.Context, req AttachRequest) *Controller {
	identity := domain.NewPageIdentity(req.Path)
	ctrl := NewController(ControllerOptions{
		Identity:    identity,
		Questions:   s.selectQuestions(ctx, identity, req),
		Persistence: NewPersistence(s.store, identity),
		Emitter:     req.Emitter,
		Policy:      s.opts.Policy,
		Autoload:    s.opts.Autoload,
		Intensity:   s.opts.Intensity,
	})
	resolver := req.Resolver
	if resolver == nil {
		resolver = s.resolver
	}
	s.resolveAsync(ctx, ctrl, resolver)
	return ctrl
}

func (s *QuizService) selectQuestions(ctx context.Context, identity domain.PageIdentity, req AttachRequest) domain.QuestionSet {
	if set, ok := SelectQuestions(req.Questions, req.DataQuestions); ok {
		return set
	}
	if s.questions != nil {
		set, err := s.questions.GetQuestions(ctx, identity.Slug)
		switch {
		case err == nil && ValidQuestionSet(set):
			return set
		case err != nil && !errors.Is(err, domain.ErrQuestionsNotFound):
			log.Printf("quiz: load questions for %s: %v", identity.Slug, err)
		}
	}
	return DefaultQuestions()
}

func (s *QuizService) resolveAsync(ctx context.Context, ctrl *Controller, resolver ResultResolver) {
	if resolver == nil {
		return
	}
	generation := ctrl.Generation()
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		rctx, cancel := context.WithTimeout(ctx, s.opts.ResolveTimeout)
		defer cancel()
		result, ok := resolver.Resolve(rctx, ctrl.Identity())
		if !ok {
			return
		}
		if ctrl.ApplyExternal(generation, result) {
			log.Printf("quiz: external result applied for %s (%d/%d)", ctrl.Identity().Slug, result.Score, result.Total)
		}
	}()
}

// Wait blocks until every background resolution started by Attach has finished.
func (s *QuizService) Wait() {
	s.pending.Wait()
}

// Reset removes persisted progress for a page path.
func (s *QuizService) Reset(ctx context.Context, path string) error {
	if s.store == nil {
		return nil
	}
	return s.store.Delete(ctx, domain.NewPageIdentity(path).StorageKey())
}
