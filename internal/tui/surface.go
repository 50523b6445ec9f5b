package tui

import (
	"sync"

	"confetti-quiz/internal/feedback"
	tea "github.com/charmbracelet/bubbletea"
)

// Terminal cells are mapped to a pixel-like space so particle physics keeps its scale.
const (
	cellWidth    = 8
	cellHeight   = 16
	confettiRows = 8
)

// FrameMsg carries one rendered confetti frame into the Bubble Tea loop.
type FrameMsg struct {
	Particles []feedback.Particle
}

// Surface is the confetti strip at the bottom of the terminal widget.
type Surface struct {
	mu   sync.Mutex
	cols int
	rows int
	send func(tea.Msg)
}

func NewSurface() *Surface {
	return &Surface{cols: 80, rows: confettiRows}
}

// Bind routes frames to send, typically tea.Program.Send.
func (s *Surface) Bind(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

// SetSize updates the strip size in terminal cells.
func (s *Surface) SetSize(cols, rows int) {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
}

func (s *Surface) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.cols * cellWidth), float64(s.rows * cellHeight)
}

func (s *Surface) Draw(frame []feedback.Particle) {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send != nil {
		send(FrameMsg{Particles: frame})
	}
}
