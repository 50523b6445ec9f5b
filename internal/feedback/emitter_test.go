package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/domain"
)

var _ app.Emitter = (*Emitter)(nil)

func TestCelebrateScalesWithIntensity(t *testing.T) {
	engine := NewEngine(EngineOptions{FrameInterval: time.Hour})
	engine.Attach(&recordingSurface{w: 100, h: 100})
	defer engine.Detach()

	NewEmitter(engine).Celebrate(0.5)
	if got := len(engine.Particles()); got != 110 {
		t.Fatalf("expected 110 particles, got %d", got)
	}
}

func TestCelebrateFollowsConfiguredDefaults(t *testing.T) {
	clock := newManualClock()
	engine := NewEngine(EngineOptions{
		Defaults:      FireOptions{Duration: 3 * time.Second, Particles: 90},
		FrameInterval: time.Hour,
		Now:           clock.Now,
	})
	engine.Attach(&recordingSurface{w: 100, h: 100})
	defer engine.Detach()

	NewEmitter(engine).Celebrate(1)
	if got := len(engine.Particles()); got != 110 {
		t.Fatalf("expected 110 particles from 90 configured, got %d", got)
	}
	engine.mu.Lock()
	deadline := engine.deadline
	engine.mu.Unlock()
	if want := clock.Now().Add(4 * time.Second); !deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, deadline)
	}
}

func TestCelebrateWithoutEngineIsNoop(t *testing.T) {
	NewEmitter(nil).Celebrate(1)
}

func TestNotifyFansOutAndSwallowsErrors(t *testing.T) {
	var got []string
	failing := SinkFunc(func(context.Context, domain.ProgressEvent) error {
		return errors.New("broker down")
	})
	recording := SinkFunc(func(_ context.Context, ev domain.ProgressEvent) error {
		got = append(got, ev.ID)
		return nil
	})

	base := NewEmitter(nil, failing, LogSink{})
	conn := base.With(recording)
	conn.Notify(context.Background(), domain.ProgressEvent{ID: "evt-1", Slug: "planet"})
	base.Notify(context.Background(), domain.ProgressEvent{ID: "evt-2", Slug: "planet"})

	if len(got) != 1 || got[0] != "evt-1" {
		t.Fatalf("expected only the derived emitter to reach the extra sink, got %v", got)
	}
}
