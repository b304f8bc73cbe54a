// Package annotate produces learning highlights for an article: a model
// picks vocabulary, collocations and sentence patterns, with a keyword
// fallback when the model is unavailable.
package annotate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/highlight"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/segmenter"
)

// Annotator returns highlights for an article body.
type Annotator interface {
	Analyze(ctx context.Context, text string) ([]highlight.Highlight, error)
}

// ErrTooShort is returned for text too short to analyse.
var ErrTooShort = errors.New("text too short for analysis")

// MinChars is the shortest text worth sending to a model.
const MinChars = 50

// Counts is how many items of each kind to ask for.
type Counts struct {
	Vocabulary   int
	Collocations int
	Patterns     int
}

// Targets scales item counts with article length. Zero words is treated
// as a typical 500-word article.
func Targets(wordCount int) Counts {
	if wordCount <= 0 {
		wordCount = 500
	}
	return Counts{
		Vocabulary:   clamp(wordCount/30, 10, 30),
		Collocations: clamp(wordCount/60, 5, 15),
		Patterns:     clamp(wordCount/100, 3, 8),
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service wraps an annotator for the rendering path: it never fails,
// and concurrent requests for the same article share one call.
type Service struct {
	primary  Annotator
	fallback Annotator
	log      *slog.Logger
	group    singleflight.Group
}

// NewService returns a Service. fallback may be nil.
func NewService(primary, fallback Annotator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{primary: primary, fallback: fallback, log: log}
}

// Highlights returns highlights for the article, or nil when none could be
// produced. Failures are logged, never returned. Callers share a call only
// when both the article id and its content signature match; the shared
// call is detached from any one caller's cancellation.
func (s *Service) Highlights(ctx context.Context, articleID, text string) []highlight.Highlight {
	key := articleID + ":" + segmenter.Signature(text)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.analyze(context.WithoutCancel(ctx), articleID, text), nil
	})

	select {
	case <-ctx.Done():
		return nil
	case r := <-ch:
		hs, _ := r.Val.([]highlight.Highlight)
		return hs
	}
}

func (s *Service) analyze(ctx context.Context, articleID, text string) []highlight.Highlight {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if s.primary != nil {
		hs, err := s.primary.Analyze(ctx, text)
		if err == nil && len(hs) > 0 {
			s.log.Info("annotation complete", slog.String("article", articleID), slog.Int("highlights", len(hs)))
			return hs
		}
		if err == nil {
			err = errors.New("no highlights returned")
		}
		s.log.Warn("annotation unavailable", slog.String("article", articleID), slog.Any("error", err))
	}

	if s.fallback == nil || ctx.Err() != nil {
		return nil
	}
	hs, err := s.fallback.Analyze(ctx, text)
	if err != nil {
		s.log.Warn("fallback annotation failed", slog.String("article", articleID), slog.Any("error", err))
		return nil
	}
	return hs
}
