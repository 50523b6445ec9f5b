package feedback

import (
	"context"
	"log"
	"math"
	"time"

	"confetti-quiz/internal/domain"
)

// A celebration is a larger, longer burst than the engine default. With the stock defaults
// it lasts 2000ms and spawns 220 particles at intensity 1.
const (
	celebrationDurationScale  = 2000.0 / 1500.0
	celebrationParticlesScale = 220.0 / 180.0
)

// Sink receives progress events. Publish errors are logged and dropped by the emitter.
type Sink interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event domain.ProgressEvent) error

func (f SinkFunc) Publish(ctx context.Context, event domain.ProgressEvent) error {
	return f(ctx, event)
}

// LogSink writes progress events to the standard logger.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, event domain.ProgressEvent) error {
	log.Printf("progress %s: score=%d percentage=%d finished=%v", event.Slug, event.Result.Score, event.Result.Percentage, event.Result.Finished)
	return nil
}

// Emitter celebrates on an engine and notifies sinks.
type Emitter struct {
	engine *Engine
	sinks  []Sink
}

// NewEmitter builds an emitter; engine may be nil for headless use.
func NewEmitter(engine *Engine, sinks ...Sink) *Emitter {
	return &Emitter{engine: engine, sinks: sinks}
}

// With returns a copy of the emitter with extra sinks appended.
func (e *Emitter) With(sinks ...Sink) *Emitter {
	all := make([]Sink, 0, len(e.sinks)+len(sinks))
	all = append(all, e.sinks...)
	all = append(all, sinks...)
	return &Emitter{engine: e.engine, sinks: all}
}

// Celebrate fires a burst scaled from the engine defaults.
func (e *Emitter) Celebrate(intensity float64) {
	if e.engine == nil {
		return
	}
	if intensity <= 0 {
		intensity = 1
	}
	defaults := e.engine.Defaults()
	e.engine.Fire(FireOptions{
		Duration:  time.Duration(math.Round(float64(defaults.Duration) * celebrationDurationScale)),
		Particles: int(math.Round(float64(defaults.Particles) * celebrationParticlesScale * intensity)),
	})
}

func (e *Emitter) Notify(ctx context.Context, event domain.ProgressEvent) {
	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			log.Printf("feedback: publish %s: %v", event.ID, err)
		}
	}
}
