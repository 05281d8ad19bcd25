package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidgrab/internal/store"
)

// recordingDeliverer captures Deliver calls for assertions.
type recordingDeliverer struct {
	mu     sync.Mutex
	calls  []string
	notify chan struct{}
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{notify: make(chan struct{}, 8)}
}

func (d *recordingDeliverer) Deliver(ctx context.Context, userID int64, sourceURL string) {
	d.mu.Lock()
	d.calls = append(d.calls, sourceURL)
	d.mu.Unlock()
	d.notify <- struct{}{}
}

func (d *recordingDeliverer) wait(t *testing.T) string {
	t.Helper()
	select {
	case <-d.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver was never called")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

func newTestServer(t *testing.T) (*Server, *store.Users, *recordingDeliverer) {
	t.Helper()
	users, err := store.Open(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("opening user store: %v", err)
	}
	d := newRecordingDeliverer()
	return NewServer(users, d, 2*time.Hour), users, d
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatusNoFreeTime(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/status/42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.HasFreeTime {
		t.Error("HasFreeTime = true for unknown user")
	}
}

func TestStatusWithFreeTime(t *testing.T) {
	s, users, _ := newTestServer(t)
	if _, err := users.GrantFreeTime(42, 2*time.Hour); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/status/42", nil)
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.HasFreeTime {
		t.Fatal("HasFreeTime = false")
	}
	if resp.RemainingMinutes < 115 || resp.RemainingMinutes > 120 {
		t.Errorf("RemainingMinutes = %d", resp.RemainingMinutes)
	}
	if resp.ExpiresAt == "" {
		t.Error("ExpiresAt is empty")
	}
}

func TestStatusBadUserID(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/status/banana", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWatchAdGrantsFreeTime(t *testing.T) {
	s, users, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/watch-ad", map[string]any{"userId": 7})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !users.HasFreeAccess(7) {
		t.Error("free time was not granted")
	}

	var resp struct {
		Success   bool   `json:"success"`
		FreeUntil string `json:"freeUntil"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.FreeUntil == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestWatchAdMissingUser(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/watch-ad", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadGated(t *testing.T) {
	s, _, d := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/download",
		map[string]any{"userId": 9, "url": "https://vm.tiktok.com/ZMabc/"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var resp struct {
		NeedsAd bool `json:"needsAd"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.NeedsAd {
		t.Error("needsAd = false")
	}

	select {
	case <-d.notify:
		t.Fatal("Deliver called for a gated user")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDownloadAccepted(t *testing.T) {
	s, users, d := newTestServer(t)
	if _, err := users.GrantFreeTime(9, time.Hour); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/download",
		map[string]any{"userId": 9, "url": "https://vm.tiktok.com/ZMabc/"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	if got := d.wait(t); got != "https://vm.tiktok.com/ZMabc/" {
		t.Errorf("delivered url = %q", got)
	}
}

func TestDownloadMissingFields(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/download", map[string]any{"userId": 9})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
