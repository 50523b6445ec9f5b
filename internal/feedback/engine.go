// Package feedback renders celebration bursts and fans progress events out to sinks.
package feedback

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	DefaultDuration  = 1500 * time.Millisecond
	DefaultParticles = 180
	// DefaultFrameInterval approximates one display refresh.
	DefaultFrameInterval = 16 * time.Millisecond

	fadePerFrame = 0.008
	// particles are retired once they fall this far below the surface.
	bottomMargin = 20
)

var defaultColors = []string{"#3da9fc", "#ef4565", "#6246ea", "#84cc16", "#f59e0b"}

// Particle is one confetti piece in surface coordinates.
type Particle struct {
	X, Y   float64
	VX, VY float64
	G      float64
	W, H   float64
	R, VR  float64
	Alpha  float64
	Color  string
}

// Surface is where frames are drawn. Size is read on every frame.
type Surface interface {
	Size() (width, height float64)
	Draw(frame []Particle)
}

// FireOptions overrides the engine defaults for one burst. Zero fields use the defaults.
type FireOptions struct {
	Duration  time.Duration
	Particles int
}

type EngineOptions struct {
	Defaults      FireOptions
	FrameInterval time.Duration
	Colors        []string
	Now           func() time.Time
	Rand          *rand.Rand
}

// Engine owns one shared particle buffer and at most one frame loop.
type Engine struct {
	defaults FireOptions
	interval time.Duration
	colors   []string
	now      func() time.Time

	mu        sync.Mutex
	rnd       *rand.Rand
	surface   Surface
	particles []Particle
	deadline  time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		defaults: opts.Defaults,
		interval: opts.FrameInterval,
		colors:   opts.Colors,
		now:      opts.Now,
		rnd:      opts.Rand,
	}
	if e.defaults.Duration <= 0 {
		e.defaults.Duration = DefaultDuration
	}
	if e.defaults.Particles <= 0 {
		e.defaults.Particles = DefaultParticles
	}
	if e.interval <= 0 {
		e.interval = DefaultFrameInterval
	}
	if len(e.colors) == 0 {
		e.colors = defaultColors
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Defaults returns the burst settings used when FireOptions leaves a field zero.
func (e *Engine) Defaults() FireOptions { return e.defaults }

// Attach binds the engine to a surface, replacing any previous one.
func (e *Engine) Attach(s Surface) {
	e.Detach()
	e.mu.Lock()
	e.surface = s
	e.mu.Unlock()
}

// Fire spawns a burst and extends the deadline. Without a surface it does nothing.
func (e *Engine) Fire(opts FireOptions) {
	if opts.Duration <= 0 {
		opts.Duration = e.defaults.Duration
	}
	if opts.Particles <= 0 {
		opts.Particles = e.defaults.Particles
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		return
	}
	w, h := e.surface.Size()
	for i := 0; i < opts.Particles; i++ {
		e.particles = append(e.particles, e.spawnLocked(w, h))
	}
	if deadline := e.now().Add(opts.Duration); deadline.After(e.deadline) {
		e.deadline = deadline
	}
	e.startLocked()
}

func (e *Engine) spawnLocked(w, h float64) Particle {
	const speed = 6.0
	theta := -math.Pi/2 + (e.rnd.Float64()-0.5)*(math.Pi/2)
	return Particle{
		X:     w / 2,
		Y:     h * 0.85,
		VX:    math.Cos(theta) * speed * (0.6 + e.rnd.Float64()*0.8),
		VY:    math.Sin(theta) * speed * (0.6 + e.rnd.Float64()*0.8),
		G:     0.18 + e.rnd.Float64()*0.22,
		W:     6 + e.rnd.Float64()*6,
		H:     8 + e.rnd.Float64()*6,
		R:     e.rnd.Float64() * math.Pi,
		VR:    (e.rnd.Float64() - 0.5) * 0.3,
		Alpha: 1,
		Color: e.colors[e.rnd.Intn(len(e.colors))],
	}
}

// Resize restarts the frame loop so the next frame picks up the new surface size.
func (e *Engine) Resize() {
	e.stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface != nil && (len(e.particles) > 0 || e.now().Before(e.deadline)) {
		e.startLocked()
	}
}

// Detach stops the loop, drops all particles and forgets the surface.
func (e *Engine) Detach() {
	e.stop()
	e.mu.Lock()
	e.particles = nil
	e.deadline = time.Time{}
	e.surface = nil
	e.mu.Unlock()
}

// Running reports whether a frame loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done != nil
}

// Done is closed when the current frame loop exits. It is already closed when idle.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.done
}

// Particles returns a copy of the live particle buffer.
func (e *Engine) Particles() []Particle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Particle(nil), e.particles...)
}

func (e *Engine) startLocked() {
	if e.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go e.loop(ctx, done)
}

func (e *Engine) stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer e.release(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.frame(done) {
				return
			}
		}
	}
}

func (e *Engine) release(done chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == done {
		e.cancel()
		e.cancel, e.done = nil, nil
	}
}

// frame advances and draws one frame. It reports false once the loop should end, and
// drops the loop handle in the same critical section so a concurrent Fire starts a new loop.
func (e *Engine) frame(done chan struct{}) bool {
	e.mu.Lock()
	surface := e.surface
	if surface == nil || (!e.now().Before(e.deadline) && len(e.particles) == 0) {
		if e.done == done {
			e.cancel()
			e.cancel, e.done = nil, nil
		}
		e.mu.Unlock()
		return false
	}
	_, h := surface.Size()
	e.particles = Step(e.particles, h)
	frame := append([]Particle(nil), e.particles...)
	e.mu.Unlock()

	surface.Draw(frame)
	return true
}

// Step applies one frame of physics in place and returns the particles still visible
// on a surface of the given height.
func Step(particles []Particle, height float64) []Particle {
	live := particles[:0]
	for _, p := range particles {
		p.VY += p.G
		p.X += p.VX
		p.Y += p.VY
		p.R += p.VR
		p.Alpha -= fadePerFrame
		if p.Alpha <= 0 || p.Y > height+bottomMargin {
			continue
		}
		live = append(live, p)
	}
	return live
}
