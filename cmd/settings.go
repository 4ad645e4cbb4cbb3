package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-skip/internal/config"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/settings"
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage auto-skip preferences",
	Long:  `Show and change which segment categories are skipped automatically.`,
}

func withSettings(fn func(ctx context.Context, s settings.Service) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, settings.NewService(store, logger))
}

// settingsShowCmd prints the current preferences
var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show auto-skip preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(ctx context.Context, s settings.Service) error {
			current, err := s.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			result, err := json.MarshalIndent(current, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format result: %w", err)
			}
			fmt.Println(string(result))
			return nil
		})
	},
}

// settingsSetCmd toggles global auto-skip or one category
var settingsSetCmd = &cobra.Command{
	Use:   "set [global|CATEGORY] [true|false]",
	Short: "Change an auto-skip preference",
	Long: `Enable or disable auto-skip globally or for one ranged category
(sponsor, selfpromo, interaction, outro, preview, greeting).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q: expected true or false", args[1])
		}

		target := args[0]
		if target != "global" && model.Category(target).Kind() != model.KindRanged {
			return fmt.Errorf("unknown category %q: only ranged categories can be skipped", target)
		}

		return withSettings(func(ctx context.Context, s settings.Service) error {
			current, err := s.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}

			if target == "global" {
				current.GlobalAutoSkip = enabled
			} else {
				current.Categories[model.Category(target)] = enabled
			}

			if err := s.Save(ctx, current); err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}
			fmt.Printf("%s auto-skip set to %t\n", target, enabled)
			return nil
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
