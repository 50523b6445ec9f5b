package tui

import (
	"fmt"
	"strings"

	"confetti-quiz/internal/domain"
	"confetti-quiz/internal/feedback"
	"github.com/charmbracelet/lipgloss"
)

const progressWidth = 30

func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

func renderHeader(view domain.View, noColor bool) string {
	line := fmt.Sprintf("Question %d of %d", view.Number, view.Total)
	return stylize(line, noColor, lipgloss.Color("33"))
}

func renderProgress(progress float64) string {
	filled := int(progress*progressWidth + 0.5)
	if filled > progressWidth {
		filled = progressWidth
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", progressWidth-filled) + "]"
}

func renderFeedback(fb *domain.Feedback, noColor bool) string {
	if fb == nil {
		return ""
	}
	color := lipgloss.Color("160")
	if fb.Correct {
		color = lipgloss.Color("34")
	}
	return stylize(fb.Text, noColor, color)
}

func renderControls(view domain.View, noColor bool) string {
	parts := []string{"enter: check"}
	if view.CanPrevious {
		parts = append(parts, "ctrl+p: previous")
	}
	if view.CanNext {
		parts = append(parts, "ctrl+n: "+strings.ToLower(view.NextLabel))
	}
	parts = append(parts, "ctrl+r: restart", "esc: quit")
	return stylize(strings.Join(parts, "  "), noColor, lipgloss.Color("242"))
}

func renderSummary(summary *domain.Summary, noColor bool) string {
	if summary == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(stylize("Results", noColor, lipgloss.Color("33")))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Score: %d / %d (%d%%)\n", summary.Score, summary.Total, summary.Percentage)
	if summary.Perfect {
		b.WriteString(stylize("Perfect score!", noColor, lipgloss.Color("34")))
		b.WriteString("\n")
	}
	if summary.Source == domain.SourceLocal {
		for _, item := range summary.Items {
			mark := "x"
			if item.Correct {
				mark = "v"
			}
			fmt.Fprintf(&b, "%s %d. %s\n   your answer: %s | expected: %s\n", mark, item.Number, item.Question, item.UserAnswer, item.Expected)
		}
	}
	b.WriteString(stylize("ctrl+r: restart  esc: quit", noColor, lipgloss.Color("242")))
	return b.String()
}

// renderConfetti rasterizes particles onto a cols x rows character grid.
func renderConfetti(frame []feedback.Particle, cols, rows int, noColor bool) string {
	if len(frame) == 0 || cols <= 0 || rows <= 0 {
		return ""
	}
	grid := make([][]string, rows)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}
	for _, p := range frame {
		c := int(p.X / cellWidth)
		r := int(p.Y / cellHeight)
		if c < 0 || c >= cols || r < 0 || r >= rows {
			continue
		}
		grid[r][c] = stylize("*", noColor, lipgloss.Color(p.Color))
	}
	lines := make([]string, rows)
	for r := range grid {
		lines[r] = strings.Join(grid[r], "")
	}
	return strings.Join(lines, "\n")
}
