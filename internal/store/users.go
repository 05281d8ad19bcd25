// Package store persists users and their free-time windows in a flat
// JSON file, keyed by user ID. Writes are atomic (temp file + rename)
// to prevent corruption.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// User is one chat user and their quota state.
type User struct {
	ID             int64      `json:"userId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
	FreeUntil      *time.Time `json:"freeUntil,omitempty"`
	TotalDownloads int        `json:"totalDownloads"`
	AdsWatched     int        `json:"adsWatched"`
	LastDownload   *time.Time `json:"lastDownload,omitempty"`
}

// Stats is an aggregate snapshot over all users.
type Stats struct {
	TotalUsers      int
	TotalDownloads  int
	TotalAdsWatched int
	ActiveUsers     int // users with unexpired free time
}

// Users is the flat-file user store. All methods are safe for
// concurrent use.
type Users struct {
	path string

	mu   sync.Mutex
	byID map[int64]*User
}

// Open loads the store at path, creating an empty one if the file does
// not exist yet.
func Open(path string) (*Users, error) {
	u := &Users{path: path, byID: make(map[int64]*User)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return u, nil
		}
		return nil, fmt.Errorf("reading user store: %w", err)
	}

	var raw map[string]*User
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing user store %s: %w", path, err)
	}
	for key, user := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue // skip malformed keys rather than refusing to start
		}
		user.ID = id
		u.byID[id] = user
	}
	return u, nil
}

// Get returns a copy of the user record, if present.
func (u *Users) Get(id int64) (User, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return User{}, false
	}
	return *user, true
}

func (u *Users) ensure(id int64) *User {
	user, ok := u.byID[id]
	if !ok {
		user = &User{ID: id, CreatedAt: time.Now().UTC()}
		u.byID[id] = user
	}
	return user
}

func touch(user *User) {
	now := time.Now().UTC()
	user.UpdatedAt = &now
}

// GrantFreeTime extends the user's free window by d from now and counts
// the ad view. It returns the new expiry.
func (u *Users) GrantFreeTime(id int64, d time.Duration) (time.Time, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user := u.ensure(id)
	until := time.Now().UTC().Add(d)
	user.FreeUntil = &until
	user.AdsWatched++
	touch(user)

	if err := u.save(); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// HasFreeAccess reports whether the user's free window is still open.
func (u *Users) HasFreeAccess(id int64) bool {
	return u.FreeRemaining(id) > 0
}

// FreeRemaining returns how much free time the user has left, or zero.
func (u *Users) FreeRemaining(id int64) time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.byID[id]
	if !ok || user.FreeUntil == nil {
		return 0
	}
	remaining := time.Until(*user.FreeUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordDownload counts a completed download for the user.
func (u *Users) RecordDownload(id int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user := u.ensure(id)
	user.TotalDownloads++
	now := time.Now().UTC()
	user.LastDownload = &now
	touch(user)
	return u.save()
}

// Snapshot aggregates store-wide counters.
func (u *Users) Snapshot() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()

	var s Stats
	now := time.Now()
	for _, user := range u.byID {
		s.TotalUsers++
		s.TotalDownloads += user.TotalDownloads
		s.TotalAdsWatched += user.AdsWatched
		if user.FreeUntil != nil && user.FreeUntil.After(now) {
			s.ActiveUsers++
		}
	}
	return s
}

// PruneInactive drops users with no activity for longer than olderThan
// and returns how many were removed.
func (u *Users) PruneInactive(olderThan time.Duration) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	pruned := 0
	for id, user := range u.byID {
		last := user.CreatedAt
		if user.UpdatedAt != nil && user.UpdatedAt.After(last) {
			last = *user.UpdatedAt
		}
		if last.Before(cutoff) {
			delete(u.byID, id)
			pruned++
		}
	}
	if pruned == 0 {
		return 0, nil
	}
	return pruned, u.save()
}

// Backup writes a timestamped copy of the store next to the live file
// and returns its path.
func (u *Users) Backup() (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	data, err := u.encode()
	if err != nil {
		return "", err
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	dir := filepath.Dir(u.path)
	base := filepath.Base(u.path)
	backupPath := filepath.Join(dir, fmt.Sprintf("%s_backup_%s.json", trimExt(base), stamp))

	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	return backupPath, nil
}

// Maintain runs the periodic backup and prune jobs until ctx is done.
// Both are safety nets, not correctness requirements.
func (u *Users) Maintain(ctx context.Context, backupEvery, pruneEvery, inactiveAfter time.Duration) {
	backup := time.NewTicker(backupEvery)
	prune := time.NewTicker(pruneEvery)
	defer backup.Stop()
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-backup.C:
			if path, err := u.Backup(); err != nil {
				log.Warn().Err(err).Msg("user store backup failed")
			} else {
				log.Info().Str("path", path).Msg("user store backed up")
			}
		case <-prune.C:
			if n, err := u.PruneInactive(inactiveAfter); err != nil {
				log.Warn().Err(err).Msg("user store prune failed")
			} else if n > 0 {
				log.Info().Int("pruned", n).Msg("pruned inactive users")
			}
		}
	}
}

func trimExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func (u *Users) encode() ([]byte, error) {
	raw := make(map[string]*User, len(u.byID))
	for id, user := range u.byID {
		raw[strconv.FormatInt(id, 10)] = user
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding user store: %w", err)
	}
	return data, nil
}

// save writes the store atomically. Callers must hold u.mu.
func (u *Users) save() error {
	data, err := u.encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(u.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "users-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing user store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, u.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing user store: %w", err)
	}
	return nil
}
