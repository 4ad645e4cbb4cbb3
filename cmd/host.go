package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-skip/internal/config"
	"github.com/Taichi-iskw/yt-skip/internal/host"
	"github.com/Taichi-iskw/yt-skip/internal/service/common"
)

// hostCmd runs the native messaging host on stdio
var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the native messaging host",
	Long: `Read native messaging frames from stdin and answer them on stdout.
Supported actions are "ping" and "analyze". This is the process the bridge
engine spawns; it can also be registered with the browser directly.`,
	// browsers append the caller origin as an argument
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if errors.Is(err, config.ErrConfigNotFound) {
			cfg = config.Default()
		} else if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger := setupLogger(cfg)

		var analyzer host.Analyzer
		switch cfg.Host.Analyzer {
		case config.AnalyzerOpenAI:
			a, err := newOpenAIAnalyzer(cfg, logger)
			if err != nil {
				return err
			}
			analyzer = a
		default:
			analyzer = host.NewCLIAnalyzer(common.NewCmdRunner(), cfg.Host.Command)
		}

		return host.New(analyzer, logger).Serve(context.Background(), os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
}
