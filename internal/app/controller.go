package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"confetti-quiz/internal/domain"
	"github.com/google/uuid"
)

// NavigationPolicy decides when the current question lets the user move forward.
type NavigationPolicy int

const (
	// GateOnAttempt opens Next once the current question was checked, right or wrong.
	GateOnAttempt NavigationPolicy = iota
	// GateOnCorrect opens Next only after a correct answer.
	GateOnCorrect
)

// ParseNavigationPolicy maps the config spelling to a policy. Empty means GateOnAttempt.
func ParseNavigationPolicy(raw string) (NavigationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "attempt":
		return GateOnAttempt, nil
	case "correct":
		return GateOnCorrect, nil
	}
	return GateOnAttempt, fmt.Errorf("unknown navigation gating %q", raw)
}

// Emitter receives fire-and-forget feedback from the controller.
type Emitter interface {
	Celebrate(intensity float64)
	Notify(ctx context.Context, event domain.ProgressEvent)
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Identity    domain.PageIdentity
	Questions   domain.QuestionSet
	Persistence *Persistence
	Emitter     Emitter
	Policy      NavigationPolicy
	// Autoload hydrates questions and progress from Persistence on construction.
	Autoload bool
	// Intensity scales the celebration burst; zero means 1.
	Intensity float64
	Now       func() time.Time
	NewID     func() string
}

// Controller is the quiz progression state machine for one attached widget.
type Controller struct {
	identity    domain.PageIdentity
	persistence *Persistence
	emitter     Emitter
	policy      NavigationPolicy
	intensity   float64
	now         func() time.Time
	newID       func() string

	mu           sync.Mutex
	questions    domain.QuestionSet
	ledger       *Ledger
	index        int
	summaryShown bool
	inputLocked  bool
	input        string
	feedback     *domain.Feedback
	override     *domain.ExternalResult
	generation   uint64
	subscribers  map[chan domain.View]struct{}
}

func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		identity:    opts.Identity,
		persistence: opts.Persistence,
		emitter:     opts.Emitter,
		policy:      opts.Policy,
		intensity:   opts.Intensity,
		now:         opts.Now,
		newID:       opts.NewID,
		questions:   opts.Questions,
		ledger:      NewLedger(),
		subscribers: make(map[chan domain.View]struct{}),
	}
	if c.identity.Path == "" {
		c.identity = domain.NewPageIdentity("")
	}
	if c.intensity <= 0 {
		c.intensity = 1
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if !ValidQuestionSet(c.questions) {
		c.questions = DefaultQuestions()
	}
	if opts.Autoload {
		if snap, ok := c.persistence.Load(); ok {
			c.hydrate(snap)
		}
	}
	return c
}

func (c *Controller) hydrate(snap domain.Snapshot) {
	c.questions = snap.Questions
	c.ledger = ledgerFromMaps(snap.Answers, snap.Correct, len(snap.Questions))
	c.index = snap.CurrentIndex
	if c.index < 0 {
		c.index = 0
	}
	if c.index >= len(c.questions) {
		c.index = len(c.questions) - 1
	}
	c.summaryShown = snap.SummaryShown
	c.replayLocked()
}

// Identity returns the page identity the controller is attached to.
func (c *Controller) Identity() domain.PageIdentity { return c.identity }

// Generation changes whenever Restart discards the session. Asynchronous results carry the
// generation they were requested for.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Check compares text with the current question's answer and records the attempt.
func (c *Controller) Check(text string) (domain.View, error) {
	c.mu.Lock()
	if err := c.guardQuestionLocked(); err != nil {
		view := c.viewLocked()
		c.mu.Unlock()
		return view, err
	}
	if c.inputLocked {
		view := c.viewLocked()
		c.mu.Unlock()
		return view, domain.ErrInputLocked
	}

	q := c.currentLocked()
	answer := NormalizeAnswer(text)
	correct := answer == NormalizeAnswer(q.Answer)
	c.ledger.Record(c.index, answer, correct)
	c.input = answer
	c.inputLocked = correct
	c.feedback = feedbackFor(correct, q)
	c.persistLocked()

	view := c.viewLocked()
	c.broadcastLocked(view)
	event := c.progressEventLocked(false)
	c.mu.Unlock()

	if correct {
		c.celebrate()
	}
	c.notify(event)
	return view, nil
}

// Next moves to the following question, or to the summary from the last one.
func (c *Controller) Next() (domain.View, error) {
	c.mu.Lock()
	if err := c.guardQuestionLocked(); err != nil {
		view := c.viewLocked()
		c.mu.Unlock()
		return view, err
	}
	if !c.gateOpenLocked() {
		view := c.viewLocked()
		c.mu.Unlock()
		return view, domain.ErrNotAnswered
	}

	var event *domain.ProgressEvent
	if c.index == len(c.questions)-1 {
		c.summaryShown = true
		c.persistLocked()
		e := c.progressEventLocked(true)
		event = &e
	} else {
		c.index++
		c.replayLocked()
	}

	view := c.viewLocked()
	c.broadcastLocked(view)
	c.mu.Unlock()

	if event != nil {
		c.notify(*event)
	}
	return view, nil
}

// Previous moves back one question and replays its stored state without re-checking.
func (c *Controller) Previous() (domain.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardQuestionLocked(); err != nil {
		return c.viewLocked(), err
	}
	if c.index == 0 {
		return c.viewLocked(), domain.ErrNoPrevious
	}
	c.index--
	c.replayLocked()
	view := c.viewLocked()
	c.broadcastLocked(view)
	return view, nil
}

// Restart discards all progress, the persisted snapshot and any external override.
func (c *Controller) Restart() domain.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.Reset()
	c.persistence.Clear()
	c.resetLocked()
	c.override = nil
	c.generation++
	view := c.viewLocked()
	c.broadcastLocked(view)
	return view
}

// ReplaceQuestions installs new content and resets all derived state.
func (c *Controller) ReplaceQuestions(set domain.QuestionSet) (domain.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.override != nil {
		return c.viewLocked(), domain.ErrReadOnly
	}
	if !ValidQuestionSet(set) {
		set = DefaultQuestions()
	}
	c.questions = set
	c.ledger.Reset()
	c.resetLocked()
	view := c.viewLocked()
	c.broadcastLocked(view)
	return view, nil
}

// ApplyExternal freezes the controller into summary mode with an authoritative result.
// Results requested before the last Restart, and unfinished results, are ignored.
func (c *Controller) ApplyExternal(generation uint64, result domain.ExternalResult) bool {
	if !result.Finished {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	if result.Total <= 0 {
		result.Total = len(c.questions)
	}
	if result.Score < 0 || result.Score > result.Total {
		result.Score = min(max(result.Score, 0), result.Total)
		result.Percentage = -1
	}
	if result.Percentage < 0 || result.Percentage > 100 {
		result.Percentage = percentage(result.Score, result.Total)
	}
	c.override = &result
	c.summaryShown = true
	c.inputLocked = true
	c.feedback = nil
	view := c.viewLocked()
	c.broadcastLocked(view)
	return true
}

// View returns the current render model.
func (c *Controller) View() domain.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Summary returns the result summary, whether or not it is shown yet.
func (c *Controller) Summary() domain.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryLocked()
}

// Ledger returns copies of the recorded answers and correctness.
func (c *Controller) Ledger() (map[int]string, map[int]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Answers(), c.ledger.Correctness()
}

// Subscribe returns a channel receiving a View after every state change, starting with
// the current one. The caller must invoke cancel to avoid leaks.
func (c *Controller) Subscribe() (<-chan domain.View, func()) {
	ch := make(chan domain.View, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	// The buffer is empty, so this cannot block, and no broadcast can overtake it.
	ch <- c.viewLocked()
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) guardQuestionLocked() error {
	if c.override != nil {
		return domain.ErrReadOnly
	}
	if c.summaryShown {
		return domain.ErrSummaryShown
	}
	return nil
}

func (c *Controller) gateOpenLocked() bool {
	if c.policy == GateOnCorrect {
		return c.ledger.IsCorrect(c.index)
	}
	return c.ledger.IsAnswered(c.index)
}

func (c *Controller) currentLocked() domain.Question {
	if c.index < 0 || c.index >= len(c.questions) {
		panic(fmt.Errorf("%w: index %d of %d", domain.ErrInvariant, c.index, len(c.questions)))
	}
	return c.questions[c.index]
}

func (c *Controller) resetLocked() {
	c.index = 0
	c.summaryShown = false
	c.inputLocked = false
	c.input = ""
	c.feedback = nil
}

// replayLocked derives input, lock and feedback for the current index from the ledger.
func (c *Controller) replayLocked() {
	answer, answered := c.ledger.Answer(c.index)
	if !answered {
		c.input = ""
		c.inputLocked = false
		c.feedback = nil
		return
	}
	correct := c.ledger.IsCorrect(c.index)
	c.input = answer
	c.inputLocked = correct
	c.feedback = feedbackFor(correct, c.currentLocked())
}

func feedbackFor(correct bool, q domain.Question) *domain.Feedback {
	if correct {
		return &domain.Feedback{Correct: true, Text: "Correct! Well done."}
	}
	return &domain.Feedback{Correct: false, Text: fmt.Sprintf("Incorrect. The correct answer is: %q", q.Answer)}
}

func (c *Controller) persistLocked() {
	total := len(c.questions)
	c.persistence.Save(domain.Snapshot{
		Questions:    c.questions,
		Answers:      c.ledger.Answers(),
		Correct:      c.ledger.Correctness(),
		CurrentIndex: c.index,
		SummaryShown: c.summaryShown,
		Score:        c.ledger.Score(),
		Percentage:   c.ledger.Percentage(total),
		SavedAt:      c.now(),
	})
}

func (c *Controller) summaryLocked() domain.Summary {
	total := len(c.questions)
	items := make([]domain.SummaryItem, 0, total)
	for i, q := range c.questions {
		answer, answered := c.ledger.Answer(i)
		if !answered {
			answer = "(not answered)"
		}
		items = append(items, domain.SummaryItem{
			Number:     i + 1,
			Question:   q.Text,
			UserAnswer: answer,
			Expected:   q.Answer,
			Answered:   answered,
			Correct:    c.ledger.IsCorrect(i),
		})
	}

	summary := domain.Summary{
		Score:      c.ledger.Score(),
		Total:      total,
		Percentage: c.ledger.Percentage(total),
		Source:     domain.SourceLocal,
		Items:      items,
	}
	if c.override != nil {
		summary.Score = c.override.Score
		summary.Total = c.override.Total
		summary.Percentage = c.override.Percentage
		summary.Source = domain.SourceExternal
	}
	summary.Perfect = summary.Total > 0 && summary.Score == summary.Total
	return summary
}

func (c *Controller) phaseLocked() domain.Phase {
	switch {
	case c.summaryShown:
		return domain.PhaseSummary
	case c.inputLocked:
		return domain.PhaseAnswered
	}
	return domain.PhaseAnswering
}

func (c *Controller) viewLocked() domain.View {
	q := c.currentLocked()
	total := len(c.questions)
	isLast := c.index == total-1
	view := domain.View{
		Phase:       c.phaseLocked(),
		Index:       c.index,
		Number:      c.index + 1,
		Total:       total,
		Question:    q.Text,
		Input:       c.input,
		InputLocked: c.inputLocked || c.summaryShown,
		CanPrevious: !c.summaryShown && c.override == nil && c.index > 0,
		CanNext:     !c.summaryShown && c.override == nil && c.gateOpenLocked(),
		IsLast:      isLast,
		NextLabel:   "Next",
		Progress:    float64(c.index+1) / float64(total),
		ReadOnly:    c.override != nil,
	}
	view.PhaseName = view.Phase.String()
	if isLast {
		view.NextLabel = "See results"
	}
	if c.feedback != nil {
		fb := *c.feedback
		view.Feedback = &fb
	}
	if c.summaryShown {
		summary := c.summaryLocked()
		view.Summary = &summary
	}
	return view
}

func (c *Controller) progressEventLocked(finished bool) domain.ProgressEvent {
	summary := c.summaryLocked()
	return domain.ProgressEvent{
		ID:   c.newID(),
		Slug: c.identity.Slug,
		Result: domain.ResultStatus{
			Score:      summary.Score,
			Percentage: summary.Percentage,
			Finished:   finished,
		},
		OccurredAt: c.now(),
	}
}

func (c *Controller) broadcastLocked(view domain.View) {
	for ch := range c.subscribers {
		select {
		case ch <- view:
		default:
			// drop the oldest queued view so slow subscribers never block transitions
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

func (c *Controller) celebrate() {
	if c.emitter != nil {
		c.emitter.Celebrate(c.intensity)
	}
}

func (c *Controller) notify(event domain.ProgressEvent) {
	if c.emitter != nil {
		c.emitter.Notify(context.Background(), event)
	}
}
