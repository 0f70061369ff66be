package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/threadx/internal/counter"
)

var styles = newPalette(palette{
	accent: "#1D9BF0",
	ok:     "#00BA7C",
	err:    "#F4212E",
	warn:   "#FFD400",
	muted:  "#71767B",
})

type palette struct {
	accent, ok, err, warn, muted lipgloss.Color
}

// stylesheet holds the rendered styles for each view.
type stylesheet struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

func newPalette(p palette) *stylesheet {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return &stylesheet{
		title: fg(p.accent).Bold(true).MarginBottom(1),
		ok:    fg(p.ok).Bold(true),
		err:   fg(p.err).Bold(true),
		warn:  fg(p.warn),
		muted: fg(p.muted).Italic(true),
	}
}

// usage picks the style for a character count: muted below 80% of the limit,
// warn up to the limit, err past it.
func (s *stylesheet) usage(sum counter.Summary) lipgloss.Style {
	switch {
	case !sum.IsWithinLimit():
		return s.err
	case sum.PercentageUsed >= 0.8:
		return s.warn
	default:
		return s.muted
	}
}
