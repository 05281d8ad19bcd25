// Package service is the resolution orchestrator: it detects the
// platform of an incoming URL, runs that platform's resolver chain and
// hands the winning direct URL to the media fetcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vidgrab/internal/config"
	"vidgrab/internal/download"
	"vidgrab/internal/httpx"
	"vidgrab/internal/media"
	"vidgrab/internal/resolve"
)

// Service coordinates one download per call. Calls are self-contained
// and safe to run concurrently; there is no shared mutable state
// between requests beyond the (collision-free) storage directory.
type Service struct {
	resolvers map[media.Platform]*resolve.Resolver
	fetcher   *download.Fetcher
}

// New creates a Service from pre-built resolvers and fetcher. Used
// directly by tests; production wiring goes through FromConfig.
func New(resolvers map[media.Platform]*resolve.Resolver, fetcher *download.Fetcher) *Service {
	return &Service{resolvers: resolvers, fetcher: fetcher}
}

// FromConfig wires the default per-platform strategy chains and the
// media fetcher from configuration.
func FromConfig(cfg *config.Config, client *httpx.Client) (*Service, error) {
	dir, err := cfg.ExpandStorageDir()
	if err != nil {
		return nil, fmt.Errorf("resolving storage dir: %w", err)
	}

	timeout := cfg.StrategyTimeout.Duration
	resolvers := map[media.Platform]*resolve.Resolver{
		media.TikTok: resolve.NewTikTok(client, resolve.TikTokEndpoints{
			Tikwm:         cfg.Endpoints.Tikwm,
			MusicallyDown: cfg.Endpoints.MusicallyDown,
			SnapTik:       cfg.Endpoints.SnapTik,
		}, timeout),
		media.Instagram: resolve.NewInstagram(client, resolve.InstagramEndpoints{
			IGDownloader: cfg.Endpoints.IGDownloader,
			Vidloder:     cfg.Endpoints.Vidloder,
		}, timeout),
		media.Pinterest: resolve.NewPinterest(client, resolve.PinterestEndpoints{
			PinResource: cfg.Endpoints.PinResource,
		}, timeout),
	}

	fetcher := download.NewFetcher(client, dir, download.Limits{
		MaxBytes:    cfg.Fetch.MaxBytes,
		MinBytes:    cfg.Fetch.MinBytes,
		MaxDuration: cfg.Fetch.MaxDuration.Duration,
	})

	return New(resolvers, fetcher), nil
}

// StorageDir returns the directory downloads land in.
func (s *Service) StorageDir() string { return s.fetcher.Dir() }

// Download resolves and stores the video behind sourceURL. Platform
// detection and URL-shape validation fail fast before any network call;
// fallbacks happen only inside the resolver chain, and a failed fetch
// is never retried against another strategy (the resolved URL may be
// single-use, so that would require re-resolving from scratch).
func (s *Service) Download(ctx context.Context, sourceURL string) (*media.Download, error) {
	platform, err := media.Detect(sourceURL)
	if err != nil {
		return nil, err
	}
	if err := media.ValidateShape(platform, sourceURL); err != nil {
		return nil, err
	}

	resolver, ok := s.resolvers[platform]
	if !ok {
		return nil, fmt.Errorf("no resolver for %s: %w", platform, media.ErrUnsupportedPlatform)
	}

	reqID := uuid.NewString()[:8]
	logger := log.With().Str("req", reqID).Str("platform", platform.String()).Logger()
	logger.Info().Str("url", sourceURL).Msg("download requested")

	res, err := resolver.Resolve(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("resolving %s URL: %w", platform, err)
	}

	dl, err := s.fetcher.Store(ctx, res, platform)
	if err != nil {
		logger.Warn().Err(err).Msg("media fetch failed")
		return nil, fmt.Errorf("fetching %s media: %w", platform, err)
	}

	logger.Info().Int64("size_bytes", dl.SizeBytes).Msg("download complete")
	return dl, nil
}

// UserMessage maps an error from Download onto a message fit for end
// users: actionable where possible, free of strategy internals.
func UserMessage(err error) string {
	var invalid *media.InvalidURLError
	var resErr *resolve.Error
	var fetchErr *httpx.Error

	switch {
	case errors.Is(err, media.ErrUnsupportedPlatform):
		return "Unsupported link. Supported platforms: " + strings.Join(media.SupportedPlatforms(), ", ") + "."
	case errors.As(err, &invalid):
		return fmt.Sprintf("That %s link looks incomplete. Expected something like %s", invalid.Platform, invalid.Example)
	case errors.As(err, &resErr):
		if resErr.Platform == media.Pinterest {
			return "Could not fetch this pin. It may be private, deleted, or an image rather than a video."
		}
		return fmt.Sprintf("Could not fetch this %s video. It may be private or deleted, or the link is invalid.", resErr.Platform)
	case errors.Is(err, download.ErrTooSmall), errors.As(err, &fetchErr):
		return "The video could not be downloaded. Please try again with another link."
	case err != nil:
		return "Something went wrong while downloading. Please try again."
	default:
		return ""
	}
}
