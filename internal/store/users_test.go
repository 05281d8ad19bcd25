package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Users {
	t.Helper()
	u, err := Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	return u
}

func TestOpenMissingFile(t *testing.T) {
	u := openTestStore(t)
	_, ok := u.Get(1)
	assert.False(t, ok)
	assert.Equal(t, Stats{}, u.Snapshot())
}

func TestGrantFreeTime(t *testing.T) {
	u := openTestStore(t)

	until, err := u.GrantFreeTime(42, 2*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), until, time.Minute)

	assert.True(t, u.HasFreeAccess(42))
	assert.False(t, u.HasFreeAccess(99))

	remaining := u.FreeRemaining(42)
	assert.Greater(t, remaining, time.Hour)
	assert.LessOrEqual(t, remaining, 2*time.Hour)

	user, ok := u.Get(42)
	require.True(t, ok)
	assert.Equal(t, 1, user.AdsWatched)
}

func TestGrantFreeTimeResetsWindow(t *testing.T) {
	u := openTestStore(t)

	_, err := u.GrantFreeTime(1, time.Minute)
	require.NoError(t, err)
	until, err := u.GrantFreeTime(1, 2*time.Hour)
	require.NoError(t, err)

	// The second grant runs from now, not stacked on the first.
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), until, time.Minute)

	user, _ := u.Get(1)
	assert.Equal(t, 2, user.AdsWatched)
}

func TestRecordDownload(t *testing.T) {
	u := openTestStore(t)

	require.NoError(t, u.RecordDownload(7))
	require.NoError(t, u.RecordDownload(7))

	user, ok := u.Get(7)
	require.True(t, ok)
	assert.Equal(t, 2, user.TotalDownloads)
	require.NotNil(t, user.LastDownload)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	u1, err := Open(path)
	require.NoError(t, err)
	_, err = u1.GrantFreeTime(5, time.Hour)
	require.NoError(t, err)
	require.NoError(t, u1.RecordDownload(5))

	u2, err := Open(path)
	require.NoError(t, err)
	user, ok := u2.Get(5)
	require.True(t, ok)
	assert.Equal(t, int64(5), user.ID)
	assert.Equal(t, 1, user.TotalDownloads)
	assert.Equal(t, 1, user.AdsWatched)
	assert.True(t, u2.HasFreeAccess(5))
}

func TestOpenSkipsMalformedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	content := `{
		"42": {"userId": 42, "createdAt": "2026-01-01T00:00:00Z", "totalDownloads": 3},
		"not-a-number": {"userId": 0, "createdAt": "2026-01-01T00:00:00Z"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	u, err := Open(path)
	require.NoError(t, err)

	user, ok := u.Get(42)
	require.True(t, ok)
	assert.Equal(t, 3, user.TotalDownloads)
	assert.Equal(t, 1, u.Snapshot().TotalUsers)
}

func TestSnapshot(t *testing.T) {
	u := openTestStore(t)
	_, err := u.GrantFreeTime(1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, u.RecordDownload(1))
	require.NoError(t, u.RecordDownload(2))

	s := u.Snapshot()
	assert.Equal(t, 2, s.TotalUsers)
	assert.Equal(t, 2, s.TotalDownloads)
	assert.Equal(t, 1, s.TotalAdsWatched)
	assert.Equal(t, 1, s.ActiveUsers)
}

func TestPruneInactive(t *testing.T) {
	u := openTestStore(t)
	require.NoError(t, u.RecordDownload(1))

	// Fresh user survives a generous cutoff.
	n, err := u.PruneInactive(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// A zero cutoff prunes everyone.
	n, err = u.PruneInactive(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := u.Get(1)
	assert.False(t, ok)
}

func TestBackup(t *testing.T) {
	u := openTestStore(t)
	require.NoError(t, u.RecordDownload(1))

	path, err := u.Backup()
	require.NoError(t, err)
	assert.True(t, strings.Contains(filepath.Base(path), "users_backup_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"totalDownloads": 1`)
}
