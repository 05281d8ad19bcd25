package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidgrab/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete downloaded files older than the retention age",
	RunE:  sweepRun,
}

func sweepRun(cmd *cobra.Command, args []string) error {
	s := sweep.New(cfg.StorageDir, cfg.Retention.MaxAge.Duration, cfg.Retention.Interval.Duration)
	removed, err := s.SweepOnce()
	if err != nil {
		return fmt.Errorf("sweeping %s: %w", cfg.StorageDir, err)
	}
	fmt.Printf("Removed %d file(s) from %s\n", removed, cfg.StorageDir)
	return nil
}
