// Package api exposes the free-time gating HTTP surface consumed by
// the web front-end: status checks, ad-view grants, and download
// requests that are delivered asynchronously over the chat bot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"vidgrab/internal/store"
)

// Deliverer downloads a video and delivers it to the user out of band.
// The HTTP layer answers immediately; delivery success or failure is
// reported to the user through the chat channel, not this API.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, sourceURL string)
}

// Server is the free-time gate API.
type Server struct {
	users     *store.Users
	deliverer Deliverer
	grant     time.Duration
}

// NewServer creates the API server.
func NewServer(users *store.Users, deliverer Deliverer, grant time.Duration) *Server {
	return &Server{users: users, deliverer: deliverer, grant: grant}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status/{userID}", s.handleStatus)
	mux.HandleFunc("POST /api/watch-ad", s.handleWatchAd)
	mux.HandleFunc("POST /api/download", s.handleDownload)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type statusResponse struct {
	HasFreeTime      bool   `json:"hasFreeTime"`
	ExpiresAt        string `json:"expiresAt,omitempty"`
	RemainingMinutes int    `json:"remainingMinutes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("userID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid user ID"})
		return
	}

	remaining := s.users.FreeRemaining(userID)
	if remaining <= 0 {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		HasFreeTime:      true,
		ExpiresAt:        time.Now().Add(remaining).UTC().Format(time.RFC3339),
		RemainingMinutes: int(remaining.Minutes()),
	})
}

type watchAdRequest struct {
	UserID int64 `json:"userId"`
}

func (s *Server) handleWatchAd(w http.ResponseWriter, r *http.Request) {
	var req watchAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "missing user ID"})
		return
	}

	until, err := s.users.GrantFreeTime(req.UserID, s.grant)
	if err != nil {
		log.Error().Err(err).Int64("user_id", req.UserID).Msg("granting free time failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}

	log.Info().Int64("user_id", req.UserID).Time("free_until", until).Msg("ad view registered")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"freeUntil": until.Format(time.RFC3339),
	})
}

type downloadRequest struct {
	UserID int64  `json:"userId"`
	URL    string `json:"url"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "missing user ID or URL"})
		return
	}

	if !s.users.HasFreeAccess(req.UserID) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"success": false,
			"needsAd": true,
			"message": "watch an ad to unlock downloads",
		})
		return
	}

	// Answer right away; the whole resolve+fetch can take minutes and
	// the result is delivered through the chat channel.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "download started",
	})

	go s.deliverer.Deliver(context.Background(), req.UserID, req.URL)
}
