// Package download streams a resolved direct media URL to local
// storage, with size and wall-clock bounds and post-download
// validation. No failure path leaves a partial file behind.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"vidgrab/internal/httpx"
	"vidgrab/internal/media"
)

// ErrTooSmall flags a downloaded body below the minimum size
// threshold: almost always an upstream error page, not media.
var ErrTooSmall = errors.New("downloaded file below minimum size")

// Limits bounds a single store operation.
type Limits struct {
	MaxBytes    int64         // abort past this many body bytes
	MinBytes    int64         // reject smaller results
	MaxDuration time.Duration // wall clock for the whole transfer
}

// Fetcher downloads direct media URLs into a shared storage directory.
// Filenames embed a ULID so concurrent writers never clash.
type Fetcher struct {
	client *httpx.Client
	dir    string
	limits Limits
}

// NewFetcher creates a Fetcher storing files under dir.
func NewFetcher(client *httpx.Client, dir string, limits Limits) *Fetcher {
	return &Fetcher{client: client, dir: dir, limits: limits}
}

// Dir returns the storage directory.
func (f *Fetcher) Dir() string { return f.dir }

// filename builds a collision-free name: platform + timestamp + ULID.
func (f *Fetcher) filename(platform media.Platform) string {
	return fmt.Sprintf("%s_%s_%s.mp4",
		platform,
		time.Now().UTC().Format("20060102T150405"),
		ulid.Make())
}

// Store streams the resolved media to disk and validates the result.
// The returned file is owned by the caller; the retention sweeper may
// still remove it once it ages out.
func (f *Fetcher) Store(ctx context.Context, res *media.Resolved, platform media.Platform) (*media.Download, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.limits.MaxDuration)
	defer cancel()

	referer := platform.Referer()
	stream, err := f.client.OpenStream(ctx, res.DirectURL, httpx.Options{
		Header: map[string]string{
			"Referer": referer,
			"Origin":  originFromReferer(referer),
			"Accept":  "*/*",
		},
		Timeout:  -1, // bounded by the wall-clock ctx instead
		MaxBytes: f.limits.MaxBytes,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	path := filepath.Join(f.dir, f.filename(platform))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating media file: %w", err)
	}

	size, err := copyAndSniff(file, stream.Body, path)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing media file: %w", err)
	}

	if size < f.limits.MinBytes {
		os.Remove(path)
		return nil, fmt.Errorf("%w: %d bytes (min %d), likely an error page", ErrTooSmall, size, f.limits.MinBytes)
	}

	log.Info().
		Str("platform", platform.String()).
		Str("path", path).
		Int64("size_bytes", size).
		Msg("media stored")

	return &media.Download{
		Path:       path,
		Platform:   platform,
		SizeBytes:  size,
		CreatedAt:  time.Now().UTC(),
		Caption:    res.Caption,
		Author:     res.Author,
		Soundtrack: res.Soundtrack,
	}, nil
}

// copyAndSniff streams body into w, peeking at the first bytes for a
// known video container signature. An unknown signature is logged, not
// fatal: legitimate containers vary.
func copyAndSniff(w io.Writer, body io.Reader, path string) (int64, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(body, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("reading media stream: %w", err)
	}
	header = header[:n]

	if n > 0 && !looksLikeVideo(header) {
		log.Warn().Str("path", path).Msg("stored bytes do not start with a known video container signature")
	}

	if _, err := w.Write(header); err != nil {
		return 0, fmt.Errorf("writing media file: %w", err)
	}

	rest, err := io.Copy(w, body)
	total := int64(n) + rest
	if err != nil {
		if copyErr := classifyCopyError(err); copyErr != nil {
			return total, copyErr
		}
		return total, fmt.Errorf("streaming media: %w", err)
	}
	return total, nil
}

func classifyCopyError(err error) error {
	var fe *httpx.Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &httpx.Error{Kind: httpx.KindTimeout, Err: err}
	}
	return nil
}

// looksLikeVideo checks the leading bytes for common container magics:
// ISO BMFF (mp4/mov), EBML (webm/mkv), and legacy FLV.
func looksLikeVideo(header []byte) bool {
	if len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")) {
		return true
	}
	if len(header) >= 4 && bytes.Equal(header[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		return true
	}
	if len(header) >= 3 && bytes.Equal(header[:3], []byte("FLV")) {
		return true
	}
	return false
}

func originFromReferer(referer string) string {
	if len(referer) > 0 && referer[len(referer)-1] == '/' {
		return referer[:len(referer)-1]
	}
	return referer
}
