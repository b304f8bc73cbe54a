// Package cachetest holds the behaviour every cache.Store must show.
package cachetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
)

// Segments returns a small list covering every status.
func Segments() []cache.Segment {
	return []cache.Segment{
		{ID: "a-0", Original: "One.", Status: cache.Done, Translation: "一。"},
		{ID: "a-1", Original: "Two.", Status: cache.InFlight},
		{ID: "a-2", Original: "Three.", Status: cache.Failed, Error: "boom", RateLimited: true},
		{ID: "a-3", Original: "Four.", Status: cache.Pending},
	}
}

// Run checks s against the Store contract. s must start empty.
func Run(t *testing.T, s cache.Store) {
	t.Helper()
	ctx := context.Background()
	key := cache.Key{ArticleID: "a", Signature: "sig1"}

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	in := Segments()
	require.NoError(t, s.Put(ctx, key, in))
	in[0].Translation = "mutated"

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 4)
	assert.Equal(t, "一。", got[0].Translation)
	assert.Equal(t, cache.Pending, got[1].Status, "in-flight loads as pending")
	assert.Equal(t, cache.Failed, got[2].Status)
	assert.Equal(t, "boom", got[2].Error)
	assert.True(t, got[2].RateLimited)

	// Overwrite keeps one entry per key.
	got[3].Status = cache.Done
	require.NoError(t, s.Put(ctx, key, got))
	again, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cache.Done, again[3].Status)

	_, ok, err = s.Get(ctx, cache.Key{ArticleID: "a", Signature: "sig2"})
	require.NoError(t, err)
	assert.False(t, ok, "signature mismatch is a miss")

	require.NoError(t, s.Put(ctx, cache.Key{ArticleID: "b", Signature: "x"}, Segments()[:1]))
	require.NoError(t, s.Delete(ctx, "a"))

	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, cache.Key{ArticleID: "b", Signature: "x"})
	require.NoError(t, err)
	assert.True(t, ok, "delete is scoped to one article")

	require.NoError(t, s.Delete(ctx, "missing"))
}
