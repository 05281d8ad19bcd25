package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"vidgrab/internal/api"
	"vidgrab/internal/bot"
	"vidgrab/internal/history"
	"vidgrab/internal/httpx"
	"vidgrab/internal/service"
	"vidgrab/internal/store"
	"vidgrab/internal/sweep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the free-time HTTP API",
	RunE:  serveRun,
}

func serveRun(cmd *cobra.Command, args []string) error {
	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return fmt.Errorf("BOT_TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := service.FromConfig(cfg, httpx.New())
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}

	users, err := store.Open(cfg.UsersDB)
	if err != nil {
		return fmt.Errorf("opening user store: %w", err)
	}

	hist, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer hist.Close()

	b, err := bot.New(token, users, svc, hist, cfg.FreeTimeGrant.Duration)
	if err != nil {
		return err
	}

	srv := api.NewServer(users, b, cfg.FreeTimeGrant.Duration)
	sweeper := sweep.New(svc.StorageDir(), cfg.Retention.MaxAge.Duration, cfg.Retention.Interval.Duration)

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Run(ctx, cfg.APIAddr); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go sweeper.Run(ctx)
	go users.Maintain(ctx, 24*time.Hour, 7*24*time.Hour, 30*24*time.Hour)

	log.Info().Str("addr", cfg.APIAddr).Str("storage", svc.StorageDir()).Msg("serving")

	go func() {
		errCh <- b.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}
