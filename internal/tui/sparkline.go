package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var sparkLevels = []rune{' ', ' ', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// sparkline is a one-line scrolling graph scaled to the max of the
// visible window.
type sparkline struct {
	data  []float64
	width int
	label string
	style lipgloss.Style
}

func newSparkline(width int, label string, style lipgloss.Style) sparkline {
	return sparkline{
		width: width,
		label: label,
		style: style,
		data:  make([]float64, 0, width),
	}
}

func (s *sparkline) push(v float64) {
	s.data = append(s.data, v)
	if len(s.data) > s.width {
		s.data = s.data[len(s.data)-s.width:]
	}
}

func (s sparkline) view() string {
	if s.width <= 0 {
		return ""
	}

	max := 0.0
	for _, v := range s.data {
		if v > max {
			max = v
		}
	}

	var graph strings.Builder
	for _, v := range s.data {
		idx := 0
		if max > 0 {
			idx = int(v / max * float64(len(sparkLevels)-1))
			if idx >= len(sparkLevels) {
				idx = len(sparkLevels) - 1
			}
		}
		graph.WriteRune(sparkLevels[idx])
	}
	if pad := s.width - len(s.data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	return s.style.Render(s.label) + "\n" + s.style.Render(graph.String())
}
