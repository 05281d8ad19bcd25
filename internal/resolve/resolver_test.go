package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"vidgrab/internal/media"
)

// stubStrategy counts its invocations and returns a fixed outcome.
type stubStrategy struct {
	name  string
	res   *media.Resolved
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	s.calls++
	return s.res, s.err
}

func TestResolveFirstSuccessWins(t *testing.T) {
	first := &stubStrategy{name: "a", res: &media.Resolved{DirectURL: "https://cdn.example.com/a.mp4"}}
	second := &stubStrategy{name: "b", res: &media.Resolved{DirectURL: "https://cdn.example.com/b.mp4"}}

	r := New(media.TikTok, first, second)
	res, err := r.Resolve(context.Background(), "https://www.tiktok.com/@u/video/1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://cdn.example.com/a.mp4" {
		t.Errorf("DirectURL = %q, want first strategy's", res.DirectURL)
	}
	if second.calls != 0 {
		t.Errorf("second strategy called %d times, want 0", second.calls)
	}
}

func TestResolveFallsThroughInOrder(t *testing.T) {
	first := &stubStrategy{name: "a", err: fmt.Errorf("endpoint down")}
	second := &stubStrategy{name: "b", res: &media.Resolved{DirectURL: "https://cdn.example.com/b.mp4"}}
	third := &stubStrategy{name: "c", res: &media.Resolved{DirectURL: "https://cdn.example.com/c.mp4"}}

	r := New(media.TikTok, first, second, third)
	res, err := r.Resolve(context.Background(), "https://www.tiktok.com/@u/video/1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://cdn.example.com/b.mp4" {
		t.Errorf("DirectURL = %q, want second strategy's", res.DirectURL)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 0 {
		t.Errorf("calls = %d/%d/%d, want 1/1/0", first.calls, second.calls, third.calls)
	}
}

func TestResolveEmptyDirectURLIsFailure(t *testing.T) {
	empty := &stubStrategy{name: "a", res: &media.Resolved{}}
	good := &stubStrategy{name: "b", res: &media.Resolved{DirectURL: "https://cdn.example.com/b.mp4"}}

	r := New(media.Instagram, empty, good)
	res, err := r.Resolve(context.Background(), "https://www.instagram.com/reel/X/")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://cdn.example.com/b.mp4" {
		t.Errorf("DirectURL = %q, empty result should have fallen through", res.DirectURL)
	}
}

func TestResolveAllFail(t *testing.T) {
	a := &stubStrategy{name: "a", err: fmt.Errorf("boom a")}
	b := &stubStrategy{name: "b", err: fmt.Errorf("boom b")}

	r := New(media.Pinterest, a, b)
	_, err := r.Resolve(context.Background(), "https://pin.it/x")

	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if re.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", re.Attempts)
	}
	if re.Platform != media.Pinterest {
		t.Errorf("Platform = %v, want Pinterest", re.Platform)
	}
	// The summary should carry the last failure, not the first.
	if re.Last == nil || re.Last.Error() != "b: boom b" {
		t.Errorf("Last = %v, want last strategy's failure", re.Last)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1 (no retries)", a.calls, b.calls)
	}
}

func TestResolveNoStrategies(t *testing.T) {
	r := New(media.TikTok)
	if _, err := r.Resolve(context.Background(), "https://www.tiktok.com/@u/video/1"); err == nil {
		t.Fatal("expected error for empty strategy chain")
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &stubStrategy{name: "a", err: context.Canceled}
	b := &stubStrategy{name: "b", res: &media.Resolved{DirectURL: "https://cdn.example.com/b.mp4"}}
	cancel()

	r := New(media.TikTok, a, b)
	if _, err := r.Resolve(ctx, "https://www.tiktok.com/@u/video/1"); err == nil {
		t.Fatal("expected aggregate failure after cancellation")
	}
	if b.calls != 0 {
		t.Errorf("later strategy called after cancellation, calls = %d", b.calls)
	}
}

func TestResolveUnescapesDirectURL(t *testing.T) {
	s := &stubStrategy{name: "a", res: &media.Resolved{DirectURL: `https:\/\/cdn.example.com\/v.mp4?a=1&b=2`}}
	r := New(media.TikTok, s)
	res, err := r.Resolve(context.Background(), "https://www.tiktok.com/@u/video/1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := "https://cdn.example.com/v.mp4?a=1&b=2"; res.DirectURL != want {
		t.Errorf("DirectURL = %q, want %q", res.DirectURL, want)
	}
}
