package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vidgrab/internal/history"
	"vidgrab/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show user and download statistics",
	RunE:  statsRun,
}

func statsRun(cmd *cobra.Command, args []string) error {
	users, err := store.Open(cfg.UsersDB)
	if err != nil {
		return fmt.Errorf("opening user store: %w", err)
	}
	us := users.Snapshot()

	fmt.Println(labelStyle.Render("Users"))
	fmt.Printf("  total: %d  active: %d  ads watched: %d  downloads: %d\n",
		us.TotalUsers, us.ActiveUsers, us.TotalAdsWatched, us.TotalDownloads)

	if _, err := os.Stat(cfg.HistoryDB); err != nil {
		return nil
	}
	hist, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer hist.Close()

	hs, err := hist.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	fmt.Println(labelStyle.Render("History"))
	fmt.Printf("  downloads: %d  total size: %.1f MB\n",
		hs.TotalDownloads, float64(hs.TotalBytes)/(1024*1024))
	for platform, n := range hs.ByPlatform {
		fmt.Printf("  %s: %d\n", platform, n)
	}
	return nil
}
