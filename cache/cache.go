// Package cache stores per-article translation progress so a reopened
// article resumes where it left off. Entries are keyed by article id and a
// content signature; a signature mismatch is simply a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
)

// Status is the state of one translation segment.
type Status string

const (
	Pending  Status = "pending"
	InFlight Status = "in-flight"
	Done     Status = "done"
	Failed   Status = "error"
)

// Segment is one chunk of article text tracked through translation.
type Segment struct {
	ID          string `json:"id" yaml:"id"`
	Original    string `json:"original" yaml:"original"`
	Status      Status `json:"status" yaml:"status"`
	Translation string `json:"translation,omitempty" yaml:"translation,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	RateLimited bool   `json:"rateLimited,omitempty" yaml:"rate_limited,omitempty"`
}

// Key identifies a cache entry.
type Key struct {
	ArticleID string
	Signature string
}

func (k Key) String() string {
	return fmt.Sprintf("translation:%s:%s", k.ArticleID, k.Signature)
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache: store closed")

// Store persists segment lists.
type Store interface {
	// Get returns the segments stored under key. ok is false on a miss,
	// including when only another signature is stored for the article.
	Get(ctx context.Context, key Key) (segs []Segment, ok bool, err error)
	// Put replaces the entry for key.
	Put(ctx context.Context, key Key, segs []Segment) error
	// Delete drops every entry of the article, whatever its signature.
	Delete(ctx context.Context, articleID string) error
	Close() error
}

// Clone returns a deep copy of segs.
func Clone(segs []Segment) []Segment {
	if segs == nil {
		return nil
	}
	out := make([]Segment, len(segs))
	copy(out, segs)
	return out
}

// Normalize resets segments whose call could not have survived a restart.
func Normalize(segs []Segment) []Segment {
	for i := range segs {
		if segs[i].Status == InFlight || segs[i].Status == "" {
			segs[i].Status = Pending
		}
	}
	return segs
}

// Counts tallies segments by status.
func Counts(segs []Segment) map[Status]int {
	out := make(map[Status]int, 4)
	for _, s := range segs {
		out[s.Status]++
	}
	return out
}
