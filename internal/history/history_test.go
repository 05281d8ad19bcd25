package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := &Entry{
		UserID:    1,
		Platform:  "tiktok",
		SourceURL: "https://www.tiktok.com/@u/video/1",
		SizeBytes: 1024,
		Caption:   "first",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := &Entry{
		UserID:    2,
		Platform:  "pinterest",
		SourceURL: "https://pin.it/abc",
		SizeBytes: 2048,
		Caption:   "second",
	}
	require.NoError(t, s.Record(ctx, older))
	require.NoError(t, s.Record(ctx, newer))

	// Missing IDs get generated.
	assert.NotEmpty(t, older.ID)
	assert.NotEmpty(t, newer.ID)
	assert.NotEqual(t, older.ID, newer.ID)

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Caption)
	assert.Equal(t, "first", entries[1].Caption)
	assert.Equal(t, int64(2), entries[0].UserID)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, &Entry{
			UserID:    int64(i),
			Platform:  "instagram",
			SourceURL: "https://www.instagram.com/reel/X/",
			SizeBytes: 1,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, &Entry{UserID: 1, Platform: "tiktok", SourceURL: "u1", SizeBytes: 100}))
	require.NoError(t, s.Record(ctx, &Entry{UserID: 1, Platform: "tiktok", SourceURL: "u2", SizeBytes: 200}))
	require.NoError(t, s.Record(ctx, &Entry{UserID: 2, Platform: "pinterest", SourceURL: "u3", SizeBytes: 50}))

	stats, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDownloads)
	assert.Equal(t, int64(350), stats.TotalBytes)
	assert.Equal(t, map[string]int{"tiktok": 2, "pinterest": 1}, stats.ByPlatform)
}

func TestSnapshotEmpty(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDownloads)
	assert.Equal(t, int64(0), stats.TotalBytes)
	assert.Empty(t, stats.ByPlatform)
}
