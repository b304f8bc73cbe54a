package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/highlight"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/pipeline"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/tagger"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// Renderer formats output for one writer. Colours are dropped when the
// writer is not a terminal.
type Renderer struct {
	lg    *lipgloss.Renderer
	st    styles
	width int
}

// New returns a renderer for w. width <= 0 selects DefaultWidth.
func New(w io.Writer, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	lg := lipgloss.NewRenderer(w)
	return &Renderer{lg: lg, st: newStyles(lg), width: width}
}

// Tagged renders display segments in order, styled by kind.
func (r *Renderer) Tagged(segs []tagger.Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(r.styleFor(s.Kind).Render(s.Text))
	}
	return b.String()
}

func (r *Renderer) styleFor(k tagger.Kind) lipgloss.Style {
	switch k {
	case tagger.Vocabulary:
		return r.st.vocabulary
	case tagger.Collocation:
		return r.st.collocation
	case tagger.Grammar:
		return r.st.grammar
	case tagger.GrammarAnchor:
		return r.st.anchor
	default:
		return r.lg.NewStyle()
	}
}

// Legend lists highlights with their explanations, one per line.
func (r *Renderer) Legend(hs []highlight.Highlight) string {
	var b strings.Builder
	for _, h := range hs {
		if h.Empty() {
			continue
		}
		label := r.st.label.Render(string(h.Category))
		text := Preview(h.Text, r.width/3)
		line := label + " " + r.styleFor(kindOf(h.Category)).Render(text)
		if h.Explanation != "" {
			line += r.st.muted.Render("  " + Preview(h.Explanation, r.width-runewidth.StringWidth(text)-16))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func kindOf(c highlight.Category) tagger.Kind {
	switch c {
	case highlight.Vocabulary:
		return tagger.Vocabulary
	case highlight.Collocation:
		return tagger.Collocation
	case highlight.Grammar:
		return tagger.Grammar
	}
	return tagger.Plain
}

// Chunks lists segmenter chunks with word counts and a one-line preview.
func (r *Renderer) Chunks(chunks []string, wordCount func(string) int) string {
	var b strings.Builder
	for i, c := range chunks {
		head := fmt.Sprintf("%3d  %3d words  ", i+1, wordCount(c))
		b.WriteString(r.st.muted.Render(head))
		b.WriteString(Preview(c, r.width-runewidth.StringWidth(head)))
		b.WriteString("\n")
	}
	return b.String()
}

// Segments renders translation segments as original text followed by the
// translation, or the error, or the pending marker.
func (r *Renderer) Segments(segs []cache.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Status(s.Status))
		b.WriteString(" ")
		b.WriteString(s.Original)
		b.WriteString("\n")
		switch s.Status {
		case cache.Done:
			b.WriteString(r.st.translation.Render(s.Translation))
			b.WriteString("\n")
		case cache.Failed:
			msg := s.Error
			if s.RateLimited {
				msg = "rate limited: " + msg
			}
			b.WriteString(r.st.failed.Render("  " + Preview(msg, r.width-2)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Status renders a fixed-width status marker.
func (r *Renderer) Status(s cache.Status) string {
	switch s {
	case cache.Done:
		return r.st.done.Render("[done]")
	case cache.Failed:
		return r.st.failed.Render("[fail]")
	case cache.InFlight:
		return r.st.pending.Render("[....]")
	default:
		return r.st.pending.Render("[    ]")
	}
}

// Progress renders "segment N of M" with a bar sized to the renderer.
func (r *Renderer) Progress(p pipeline.Progress) string {
	label := fmt.Sprintf(" %d/%d", p.Current, p.Total)
	return Bar(p.Current, p.Total, min(40, r.width-runewidth.StringWidth(label)-2)) + label
}

// Bar draws a width-cell progress bar.
func Bar(current, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = min(width, current*width/total)
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// Preview collapses whitespace and truncates s to width terminal cells,
// counting wide characters as two.
func Preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
