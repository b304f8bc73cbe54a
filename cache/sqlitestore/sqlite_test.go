package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache/cachetest"
)

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	cachetest.Run(t, s)
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	key := cache.Key{ArticleID: "a", Signature: "s"}
	require.NoError(t, s.Put(ctx, key, cachetest.Segments()))
	require.NoError(t, s.Put(ctx, cache.Key{ArticleID: "a", Signature: "old"}, cachetest.Segments()))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	segs, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, segs, 4)

	require.NoError(t, s.Delete(ctx, "a"))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "delete drops every signature of the article")
}
