package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-skip/internal/config"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ytskip",
	Short: "AI-assisted ad and filler skipping for YouTube",
	Long: `ytskip coordinates AI analysis of YouTube videos for the browser extension.
It caches the resulting timelines, deduplicates concurrent requests and drives a
single analysis engine at a time.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger installs a text slog handler on stderr at the configured level.
// stdout is left alone because the native host speaks its protocol there.
func setupLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}
