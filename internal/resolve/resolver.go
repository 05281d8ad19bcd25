// Package resolve turns a user-supplied post URL into a direct media
// URL via an ordered chain of per-platform strategies.
//
// Every upstream contract here is unofficial and changes without
// notice, so no single strategy is reliable long-term. A Resolver tries
// its strategies strictly in order, never retries a failed strategy,
// and stops at the first one producing a direct URL.
package resolve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"vidgrab/internal/httpx"
	"vidgrab/internal/media"
)

// Strategy is one concrete method of resolving a source URL on one
// platform. Implementations are stateless aside from their
// configuration and must be safe for concurrent use.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error)
}

// Error reports that every strategy for a platform failed. It carries a
// summary of the last failure for diagnostics, not the full chain.
type Error struct {
	Platform media.Platform
	Attempts int
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("all %d %s strategies failed: %v", e.Attempts, e.Platform, e.Last)
}

func (e *Error) Unwrap() error { return e.Last }

// Resolver owns the ordered strategy list for one platform. Order
// encodes observed reliability and is configuration, not logic.
type Resolver struct {
	platform   media.Platform
	strategies []Strategy
}

// New creates a Resolver trying the given strategies in order.
func New(platform media.Platform, strategies ...Strategy) *Resolver {
	return &Resolver{platform: platform, strategies: strategies}
}

// Platform returns the platform this resolver serves.
func (r *Resolver) Platform() media.Platform { return r.platform }

// Resolve tries each strategy in order and returns the first result
// with a non-empty direct URL. Strategy failures are expected, routine
// occurrences; they are logged and swallowed here, and only the
// aggregate failure crosses this boundary.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	if len(r.strategies) == 0 {
		return nil, &Error{Platform: r.platform, Last: fmt.Errorf("no strategies configured")}
	}

	var last error
	for _, s := range r.strategies {
		res, err := s.Attempt(ctx, sourceURL)
		if err == nil && (res == nil || res.DirectURL == "") {
			err = fmt.Errorf("strategy returned no direct URL")
		}
		if err != nil {
			last = fmt.Errorf("%s: %w", s.Name(), err)
			log.Debug().
				Str("platform", r.platform.String()).
				Str("strategy", s.Name()).
				Err(err).
				Msg("strategy failed, falling through")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		res.DirectURL = httpx.Unescape(res.DirectURL)
		log.Info().
			Str("platform", r.platform.String()).
			Str("strategy", s.Name()).
			Str("quality", res.Quality).
			Msg("resolved direct media URL")
		return res, nil
	}

	return nil, &Error{Platform: r.platform, Attempts: len(r.strategies), Last: last}
}
