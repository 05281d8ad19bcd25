package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"vidgrab/internal/httpx"
	"vidgrab/internal/service"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Download a single video",
	Args:  cobra.ExactArgs(1),
	RunE:  getRun,
}

func getRun(cmd *cobra.Command, args []string) error {
	svc, err := service.FromConfig(cfg, httpx.New())
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}

	dl, err := svc.Download(cmd.Context(), args[0])
	if err != nil {
		fmt.Println(errStyle.Render(service.UserMessage(err)))
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return err
	}

	fmt.Printf("%s %s\n", labelStyle.Render("Saved:"), pathStyle.Render(dl.Path))
	fmt.Printf("%s %s\n", labelStyle.Render("Platform:"), dl.Platform)
	fmt.Printf("%s %.1f MB\n", labelStyle.Render("Size:"), float64(dl.SizeBytes)/(1024*1024))
	if dl.Caption != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Caption:"), dl.Caption)
	}
	if dl.Author != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Author:"), dl.Author)
	}
	return nil
}
