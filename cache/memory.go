package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize bounds the in-memory store when no size is given.
const DefaultMemorySize = 256

type memoryEntry struct {
	signature string
	segments  []Segment
}

// Memory is a bounded in-process store. The least recently used article
// is evicted when the bound is reached.
type Memory struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, memoryEntry]
	closed bool
}

// NewMemory returns a Memory holding at most size articles.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	c, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &Memory{lru: c}, nil
}

func (m *Memory) Get(_ context.Context, key Key) ([]Segment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}

	e, ok := m.lru.Get(key.ArticleID)
	if !ok || e.signature != key.Signature {
		return nil, false, nil
	}
	return Normalize(Clone(e.segments)), true, nil
}

func (m *Memory) Put(_ context.Context, key Key, segs []Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.lru.Add(key.ArticleID, memoryEntry{signature: key.Signature, segments: Clone(segs)})
	return nil
}

func (m *Memory) Delete(_ context.Context, articleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.lru.Remove(articleID)
	return nil
}

// Len returns the number of cached articles.
func (m *Memory) Len() int {
	return m.lru.Len()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.lru.Purge()
	return nil
}
