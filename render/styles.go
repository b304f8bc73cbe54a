// Package render draws tagged articles and translation state for the
// terminal.
package render

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorVocabulary  = lipgloss.Color("#ffe66d") // Yellow
	ColorCollocation = lipgloss.Color("#4ecdc4") // Teal
	ColorGrammar     = lipgloss.Color("#a8dadc") // Pale blue
	ColorAnchor      = lipgloss.Color("#FF6B6B") // Red
	ColorMuted       = lipgloss.Color("#666666") // Gray
	ColorSuccess     = lipgloss.Color("#a8e6cf") // Green
	ColorError       = lipgloss.Color("#FF6B6B")
)

// styles is the per-renderer style set. Styles must come from the
// renderer so colour detection follows the output, not os.Stdout.
type styles struct {
	vocabulary  lipgloss.Style
	collocation lipgloss.Style
	grammar     lipgloss.Style
	anchor      lipgloss.Style

	label       lipgloss.Style
	muted       lipgloss.Style
	translation lipgloss.Style
	done        lipgloss.Style
	failed      lipgloss.Style
	pending     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		vocabulary:  r.NewStyle().Foreground(ColorVocabulary).Bold(true),
		collocation: r.NewStyle().Foreground(ColorCollocation).Underline(true),
		grammar:     r.NewStyle().Foreground(ColorGrammar).Italic(true),
		anchor:      r.NewStyle().Foreground(ColorAnchor).Bold(true).Italic(true),

		label:       r.NewStyle().Bold(true).Width(12),
		muted:       r.NewStyle().Foreground(ColorMuted),
		translation: r.NewStyle().Foreground(ColorSuccess).PaddingLeft(2),
		done:        r.NewStyle().Foreground(ColorSuccess),
		failed:      r.NewStyle().Foreground(ColorError).Bold(true),
		pending:     r.NewStyle().Foreground(ColorMuted),
	}
}
