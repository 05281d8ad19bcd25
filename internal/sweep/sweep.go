// Package sweep deletes stored media past a fixed age, as a safety net
// behind callers that normally delete files themselves after delivery.
package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically removes files older than MaxAge from Dir.
// Files already gone by delete time are the expected common case, not
// a fault.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
}

// New creates a Sweeper over dir.
func New(dir string, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{dir: dir, maxAge: maxAge, interval: interval}
}

// Run sweeps once immediately, then on every interval tick until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweepAndLog()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("retention sweeper stopped")
			return
		case <-ticker.C:
			s.sweepAndLog()
		}
	}
}

func (s *Sweeper) sweepAndLog() {
	removed, err := s.SweepOnce()
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep failed")
		return
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", s.dir).Msg("swept aged media files")
	}
}

// SweepOnce scans the storage directory and deletes every regular file
// whose modification time exceeds the max age. It returns how many
// files it removed.
func (s *Sweeper) SweepOnce() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading storage directory: %w", err)
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Raced with a caller-side delete between scan and stat.
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("removing %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}
