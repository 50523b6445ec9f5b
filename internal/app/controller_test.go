package app_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/domain"
	"confetti-quiz/internal/infra/memory"
)

func TestScoreAfterOneCorrectOneIncorrect(t *testing.T) {
	ctrl, _, _ := newTestController(t, app.GateOnAttempt)

	if _, err := ctrl.Check("jupiter"); err != nil {
		t.Fatalf("check 1: %v", err)
	}
	if _, err := ctrl.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := ctrl.Check("tujuh"); err != nil {
		t.Fatalf("check 2: %v", err)
	}

	summary := ctrl.Summary()
	if summary.Score != 1 || summary.Total != 7 || summary.Percentage != 14 {
		t.Fatalf("expected 1/7 (14%%), got %d/%d (%d%%)", summary.Score, summary.Total, summary.Percentage)
	}
	if summary.Source != domain.SourceLocal || summary.Perfect {
		t.Fatalf("unexpected summary flags %+v", summary)
	}
}

func TestCheckIsCaseAndWhitespaceInsensitive(t *testing.T) {
	ctrl, emitter, _ := newTestController(t, app.GateOnAttempt)

	view, err := ctrl.Check("  Jupiter ")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if view.Feedback == nil || !view.Feedback.Correct {
		t.Fatalf("expected correct feedback, got %+v", view.Feedback)
	}
	if !view.InputLocked || view.Phase != domain.PhaseAnswered || view.Input != "jupiter" {
		t.Fatalf("expected locked answered view, got %+v", view)
	}
	if got := emitter.celebrationCount(); got != 1 {
		t.Fatalf("expected one celebration, got %d", got)
	}
	if _, err := ctrl.Check("jupiter"); !errors.Is(err, domain.ErrInputLocked) {
		t.Fatalf("expected locked input, got %v", err)
	}
}

func TestIncorrectCheckKeepsInputOpenAndOverwrites(t *testing.T) {
	ctrl, emitter, _ := newTestController(t, app.GateOnAttempt)

	view, err := ctrl.Check("saturnus")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if view.InputLocked || view.Feedback == nil || view.Feedback.Correct || view.Phase != domain.PhaseAnswering {
		t.Fatalf("expected open input with incorrect feedback, got %+v", view)
	}
	if emitter.celebrationCount() != 0 {
		t.Fatalf("incorrect answers must not celebrate")
	}

	if _, err := ctrl.Check("mars"); err != nil {
		t.Fatalf("second check: %v", err)
	}
	answers, correct := ctrl.Ledger()
	if answers[0] != "mars" || correct[0] {
		t.Fatalf("expected overwritten entry, got %q %v", answers[0], correct[0])
	}

	if _, err := ctrl.Check("Jupiter"); err != nil {
		t.Fatalf("third check: %v", err)
	}
	if _, correct := ctrl.Ledger(); !correct[0] {
		t.Fatalf("expected correct entry after retry")
	}
}

func TestNextGatingPolicies(t *testing.T) {
	t.Run("attempt", func(t *testing.T) {
		ctrl, _, _ := newTestController(t, app.GateOnAttempt)
		if _, err := ctrl.Next(); !errors.Is(err, domain.ErrNotAnswered) {
			t.Fatalf("expected gate closed before any attempt, got %v", err)
		}
		view, _ := ctrl.Check("wrong")
		if !view.CanNext {
			t.Fatalf("expected gate open after an attempt")
		}
		if view, err := ctrl.Next(); err != nil || view.Index != 1 {
			t.Fatalf("expected to advance, got index %d err %v", view.Index, err)
		}
	})
	t.Run("correct", func(t *testing.T) {
		ctrl, _, _ := newTestController(t, app.GateOnCorrect)
		view, _ := ctrl.Check("wrong")
		if view.CanNext {
			t.Fatalf("expected gate closed after an incorrect attempt")
		}
		if _, err := ctrl.Next(); !errors.Is(err, domain.ErrNotAnswered) {
			t.Fatalf("expected ErrNotAnswered, got %v", err)
		}
		if _, err := ctrl.Check("jupiter"); err != nil {
			t.Fatalf("check: %v", err)
		}
		if view, err := ctrl.Next(); err != nil || view.Index != 1 {
			t.Fatalf("expected to advance, got index %d err %v", view.Index, err)
		}
	})
}

func TestNextOnLastQuestionShowsSummaryAndPersists(t *testing.T) {
	store := memory.NewSnapshotStore()
	emitter := &recordingEmitter{}
	identity := domain.NewPageIdentity("/kuis/singkat")
	ctrl := app.NewController(app.ControllerOptions{
		Identity:    identity,
		Questions:   domain.QuestionSet{{Text: "Planet terdekat dengan matahari?", Answer: "merkurius"}, {Text: "Satelit bumi?", Answer: "bulan"}},
		Persistence: app.NewPersistence(store, identity),
		Emitter:     emitter,
	})

	mustCheck(t, ctrl, "merkurius")
	mustNext(t, ctrl)
	view := mustCheck(t, ctrl, "bulan")
	if !view.IsLast || view.NextLabel != "See results" {
		t.Fatalf("expected last question view, got %+v", view)
	}
	view = mustNext(t, ctrl)
	if view.Phase != domain.PhaseSummary || view.Summary == nil {
		t.Fatalf("expected summary, got %+v", view)
	}
	if !view.Summary.Perfect || view.Summary.Percentage != 100 {
		t.Fatalf("expected perfect summary, got %+v", view.Summary)
	}

	snap, ok := app.NewPersistence(store, identity).Load()
	if !ok || !snap.SummaryShown || snap.Score != 2 || snap.Percentage != 100 {
		t.Fatalf("expected persisted summary snapshot, got %+v ok=%v", snap, ok)
	}

	events := emitter.progressEvents()
	if len(events) != 3 {
		t.Fatalf("expected 2 check events and 1 completion, got %d", len(events))
	}
	if events[0].Result.Finished || !events[2].Result.Finished || events[2].Slug != "singkat" {
		t.Fatalf("unexpected events %+v", events)
	}

	if _, err := ctrl.Next(); !errors.Is(err, domain.ErrSummaryShown) {
		t.Fatalf("expected ErrSummaryShown, got %v", err)
	}
	if _, err := ctrl.Check("x"); !errors.Is(err, domain.ErrSummaryShown) {
		t.Fatalf("expected ErrSummaryShown, got %v", err)
	}
}

func TestSnapshotVisibleImmediatelyAfterCheck(t *testing.T) {
	ctrl, _, store := newTestController(t, app.GateOnAttempt)
	mustCheck(t, ctrl, "saturnus")

	snap, ok := app.NewPersistence(store, ctrl.Identity()).Load()
	if !ok {
		t.Fatalf("expected snapshot after check")
	}
	if snap.Answers[0] != "saturnus" || snap.Correct[0] || snap.SummaryShown {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRestartClearsProgressAndSnapshot(t *testing.T) {
	ctrl, _, store := newTestController(t, app.GateOnAttempt)
	mustCheck(t, ctrl, "jupiter")
	mustNext(t, ctrl)
	mustCheck(t, ctrl, "delapan")

	view := ctrl.Restart()
	if view.Index != 0 || view.Feedback != nil || view.Input != "" || view.Phase != domain.PhaseAnswering {
		t.Fatalf("expected fresh view, got %+v", view)
	}
	if _, ok := app.NewPersistence(store, ctrl.Identity()).Load(); ok {
		t.Fatalf("expected snapshot cleared")
	}
	if answers, _ := ctrl.Ledger(); len(answers) != 0 {
		t.Fatalf("expected empty ledger, got %v", answers)
	}
}

func TestPreviousThenNextIsIdempotent(t *testing.T) {
	ctrl, _, _ := newTestController(t, app.GateOnAttempt)
	mustCheck(t, ctrl, "jupiter")
	mustNext(t, ctrl)
	before := mustCheck(t, ctrl, "tujuh")

	if _, err := ctrl.Previous(); err != nil {
		t.Fatalf("previous: %v", err)
	}
	after := mustNext(t, ctrl)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("expected identical view\nbefore: %+v\nafter:  %+v", before, after)
	}

	mustNext(t, ctrl)
	before = ctrl.View()
	after, err := ctrl.Previous()
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if after.Index != 1 || after.Feedback == nil || after.Feedback.Correct || after.Input != "tujuh" {
		t.Fatalf("expected replayed incorrect answer, got %+v", after)
	}
	if again := mustNext(t, ctrl); !reflect.DeepEqual(before, again) {
		t.Fatalf("expected identical view after next/previous/next")
	}
}

func TestPreviousReplaysWithoutRechecking(t *testing.T) {
	ctrl, emitter, _ := newTestController(t, app.GateOnAttempt)
	if _, err := ctrl.Previous(); !errors.Is(err, domain.ErrNoPrevious) {
		t.Fatalf("expected ErrNoPrevious, got %v", err)
	}
	mustCheck(t, ctrl, "jupiter")
	mustNext(t, ctrl)
	eventsBefore := len(emitter.progressEvents())

	view, err := ctrl.Previous()
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if view.Input != "jupiter" || !view.InputLocked || view.Feedback == nil || !view.Feedback.Correct {
		t.Fatalf("expected replayed correct state, got %+v", view)
	}
	if len(emitter.progressEvents()) != eventsBefore || emitter.celebrationCount() != 1 {
		t.Fatalf("replay must not emit events or celebrations")
	}
}

func TestExternalResultOverridesSummary(t *testing.T) {
	questions := sevenQuestions()[:6]
	store := memory.NewSnapshotStore()
	identity := domain.NewPageIdentity("/kuis/tata-surya")
	ctrl := app.NewController(app.ControllerOptions{
		Identity:    identity,
		Questions:   questions,
		Persistence: app.NewPersistence(store, identity),
	})
	mustCheck(t, ctrl, "jupiter")
	mustNext(t, ctrl)
	mustCheck(t, ctrl, "delapan")
	answersBefore, correctBefore := ctrl.Ledger()

	if !ctrl.ApplyExternal(ctrl.Generation(), domain.ExternalResult{Score: 5, Percentage: 83, Total: 6, Finished: true}) {
		t.Fatalf("expected override to apply")
	}

	view := ctrl.View()
	if view.Phase != domain.PhaseSummary || !view.ReadOnly || view.Summary == nil {
		t.Fatalf("expected read-only summary, got %+v", view)
	}
	if view.Summary.Score != 5 || view.Summary.Total != 6 || view.Summary.Percentage != 83 || view.Summary.Source != domain.SourceExternal {
		t.Fatalf("expected 5/6 (83%%) from override, got %+v", view.Summary)
	}
	answersAfter, correctAfter := ctrl.Ledger()
	if !reflect.DeepEqual(answersBefore, answersAfter) || !reflect.DeepEqual(correctBefore, correctAfter) {
		t.Fatalf("override must not mutate the ledger")
	}
	if len(view.Summary.Items) != 6 || !view.Summary.Items[0].Correct {
		t.Fatalf("items must still come from the ledger, got %+v", view.Summary.Items)
	}

	for name, op := range map[string]func() error{
		"check":    func() error { _, err := ctrl.Check("x"); return err },
		"next":     func() error { _, err := ctrl.Next(); return err },
		"previous": func() error { _, err := ctrl.Previous(); return err },
		"replace":  func() error { _, err := ctrl.ReplaceQuestions(app.DefaultQuestions()); return err },
	} {
		if err := op(); !errors.Is(err, domain.ErrReadOnly) {
			t.Fatalf("%s: expected ErrReadOnly, got %v", name, err)
		}
	}

	view = ctrl.Restart()
	if view.ReadOnly || view.Phase != domain.PhaseAnswering {
		t.Fatalf("restart must clear the override, got %+v", view)
	}
}

func TestExternalResultIgnoredWhenStaleOrUnfinished(t *testing.T) {
	ctrl, _, _ := newTestController(t, app.GateOnAttempt)
	if ctrl.ApplyExternal(ctrl.Generation(), domain.ExternalResult{Score: 3}) {
		t.Fatalf("unfinished result must not apply")
	}
	generation := ctrl.Generation()
	ctrl.Restart()
	if ctrl.ApplyExternal(generation, domain.ExternalResult{Score: 3, Finished: true}) {
		t.Fatalf("result from before restart must not apply")
	}
}

func TestExternalResultFillsMissingTotal(t *testing.T) {
	ctrl, _, _ := newTestController(t, app.GateOnAttempt)
	ctrl.ApplyExternal(ctrl.Generation(), domain.ExternalResult{Score: 7, Percentage: -1, Finished: true})
	summary := ctrl.Summary()
	if summary.Total != 7 || summary.Percentage != 100 || !summary.Perfect {
		t.Fatalf("expected derived total and percentage, got %+v", summary)
	}
}

func TestExternalResultScoreClampedToTotal(t *testing.T) {
	cases := []struct {
		name   string
		result domain.ExternalResult
		want   domain.Summary
	}{
		{"above total", domain.ExternalResult{Score: 9, Total: 6, Percentage: 100}, domain.Summary{Score: 6, Total: 6, Percentage: 100}},
		{"above question count", domain.ExternalResult{Score: 12, Percentage: -1}, domain.Summary{Score: 7, Total: 7, Percentage: 100}},
		{"negative", domain.ExternalResult{Score: -2, Total: 6, Percentage: 40}, domain.Summary{Score: 0, Total: 6, Percentage: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl, _, _ := newTestController(t, app.GateOnAttempt)
			tc.result.Finished = true
			if !ctrl.ApplyExternal(ctrl.Generation(), tc.result) {
				t.Fatalf("expected result to apply")
			}
			got := ctrl.Summary()
			if got.Score != tc.want.Score || got.Total != tc.want.Total || got.Percentage != tc.want.Percentage {
				t.Fatalf("expected %d/%d (%d%%), got %d/%d (%d%%)",
					tc.want.Score, tc.want.Total, tc.want.Percentage, got.Score, got.Total, got.Percentage)
			}
		})
	}
}

func TestAutoloadHydratesFromSnapshot(t *testing.T) {
	store := memory.NewSnapshotStore()
	identity := domain.NewPageIdentity("/kuis/tata-surya")
	saved := domain.Snapshot{
		Questions:    sevenQuestions(),
		Answers:      map[int]string{0: "jupiter", 1: "tujuh"},
		Correct:      map[int]bool{0: true, 1: false},
		CurrentIndex: 1,
	}
	app.NewPersistence(store, identity).Save(saved)

	ctrl := app.NewController(app.ControllerOptions{
		Identity:    identity,
		Questions:   app.DefaultQuestions(),
		Persistence: app.NewPersistence(store, identity),
		Autoload:    true,
	})
	view := ctrl.View()
	if view.Total != 7 || view.Index != 1 || view.Input != "tujuh" || view.Feedback == nil || view.Feedback.Correct {
		t.Fatalf("expected hydrated view, got %+v", view)
	}
	if summary := ctrl.Summary(); summary.Score != 1 {
		t.Fatalf("expected hydrated score 1, got %d", summary.Score)
	}

	notLoaded := app.NewController(app.ControllerOptions{
		Identity:    identity,
		Questions:   app.DefaultQuestions(),
		Persistence: app.NewPersistence(store, identity),
	})
	if notLoaded.View().Total != 1 {
		t.Fatalf("expected no hydration without autoload")
	}
}

func TestReplaceQuestionsResetsState(t *testing.T) {
	ctrl, _, _ := newTestController(t, app.GateOnAttempt)
	mustCheck(t, ctrl, "jupiter")
	mustNext(t, ctrl)

	view, err := ctrl.ReplaceQuestions(domain.QuestionSet{{Text: "Presiden pertama?", Answer: "soekarno"}})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if view.Total != 1 || view.Index != 0 || view.Feedback != nil {
		t.Fatalf("expected reset view, got %+v", view)
	}
	if answers, _ := ctrl.Ledger(); len(answers) != 0 {
		t.Fatalf("expected ledger cleared")
	}

	view, _ = ctrl.ReplaceQuestions(nil)
	if view.Total != 1 || view.Question != app.DefaultQuestions()[0].Text {
		t.Fatalf("expected default set for empty replacement, got %+v", view)
	}
}

func TestSubscribeReceivesViews(t *testing.T) {
	ctrl, _, _ := newTestController(t, app.GateOnAttempt)
	ch, cancel := ctrl.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Index != 0 {
		t.Fatalf("expected initial view")
	}
	mustCheck(t, ctrl, "jupiter")
	update := <-ch
	if update.Feedback == nil || !update.Feedback.Correct {
		t.Fatalf("expected update after check, got %+v", update)
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	mustNext(t, ctrl)
}

func TestSubscribeInitialViewPrecedesConcurrentUpdates(t *testing.T) {
	for i := 0; i < 200; i++ {
		ctrl, _, _ := newTestController(t, app.GateOnAttempt)
		generation := ctrl.Generation()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.ApplyExternal(generation, domain.ExternalResult{Score: 5, Total: 7, Percentage: -1, Finished: true})
		}()
		ch, cancel := ctrl.Subscribe()
		wg.Wait()

		var last domain.View
	drain:
		for {
			select {
			case view := <-ch:
				last = view
			default:
				break drain
			}
		}
		cancel()
		if last.Phase != domain.PhaseSummary {
			t.Fatalf("iteration %d: last view must reflect the applied result, got phase %v", i, last.Phase)
		}
	}
}

func TestScoreNeverExceedsTotal(t *testing.T) {
	ctrl, _, _ := newTestController(t, app.GateOnAttempt)
	answers := []string{"jupiter", "delapan", "merkurius", "bumi", "matahari", "saturnus", "soekarno"}
	for i, answer := range answers {
		mustCheck(t, ctrl, answer)
		summary := ctrl.Summary()
		if summary.Score > summary.Total || summary.Percentage < 0 || summary.Percentage > 100 {
			t.Fatalf("step %d: invalid summary %+v", i, summary)
		}
		mustNext(t, ctrl)
	}
	summary := ctrl.Summary()
	if summary.Score != 7 || summary.Percentage != 100 || !summary.Perfect {
		t.Fatalf("expected perfect run, got %+v", summary)
	}
}

func newTestController(t *testing.T, policy app.NavigationPolicy) (*app.Controller, *recordingEmitter, *memory.SnapshotStore) {
	t.Helper()
	store := memory.NewSnapshotStore()
	emitter := &recordingEmitter{}
	identity := domain.NewPageIdentity("/kuis/tata-surya")
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ctrl := app.NewController(app.ControllerOptions{
		Identity:    identity,
		Questions:   sevenQuestions(),
		Persistence: app.NewPersistence(store, identity),
		Emitter:     emitter,
		Policy:      policy,
		Now:         func() time.Time { return now },
		NewID:       func() string { return "evt" },
	})
	return ctrl, emitter, store
}

func mustCheck(t *testing.T, ctrl *app.Controller, answer string) domain.View {
	t.Helper()
	view, err := ctrl.Check(answer)
	if err != nil {
		t.Fatalf("check %q: %v", answer, err)
	}
	return view
}

func mustNext(t *testing.T, ctrl *app.Controller) domain.View {
	t.Helper()
	view, err := ctrl.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	return view
}

func sevenQuestions() domain.QuestionSet {
	return domain.QuestionSet{
		{Text: "Apa nama planet terbesar di tata surya kita?", Answer: "jupiter"},
		{Text: "Berapa jumlah planet dalam tata surya?", Answer: "delapan"},
		{Text: "Planet apa yang paling dekat dengan matahari?", Answer: "merkurius"},
		{Text: "Bulan adalah satelit alami planet apa?", Answer: "bumi"},
		{Text: "Apa nama bintang di pusat tata surya kita?", Answer: "matahari"},
		{Text: "Planet mana yang memiliki cincin?", Answer: "saturnus"},
		{Text: "Siapakah presiden pertama Indonesia?", Answer: "soekarno"},
	}
}

type recordingEmitter struct {
	mu           sync.Mutex
	celebrations []float64
	events       []domain.ProgressEvent
}

func (e *recordingEmitter) Celebrate(intensity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.celebrations = append(e.celebrations, intensity)
}

func (e *recordingEmitter) Notify(_ context.Context, event domain.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) celebrationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.celebrations)
}

func (e *recordingEmitter) progressEvents() []domain.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ProgressEvent(nil), e.events...)
}
