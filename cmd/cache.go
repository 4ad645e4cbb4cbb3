package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-skip/internal/config"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear cached timelines",
	Long:  `Operations on the timelines cached per video.`,
}

// withCache opens the configured store and runs fn with a cache over it
func withCache(fn func(ctx context.Context, c cache.Cache) error) error {
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

	return fn(ctx, cache.New(store, logger))
}

// cacheGetCmd prints the cached timeline of a video
var cacheGetCmd = &cobra.Command{
	Use:   "get [VIDEO_ID]",
	Short: "Show the cached timeline of a video",
	Long:  `Display the cached timeline of a video as JSON, sorted by start time.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(ctx context.Context, c cache.Cache) error {
			artifact, ok := c.Get(ctx, model.VideoID(args[0]))
			if !ok {
				fmt.Printf("No cached timeline for %s.\n", args[0])
				return nil
			}

			result, err := json.MarshalIndent(artifact.Sorted(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format result: %w", err)
			}
			fmt.Println(string(result))
			return nil
		})
	},
}

// cacheListCmd lists cached videos
var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List videos with a cached timeline",
	Long:  `List the ids of all videos that have a cached timeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(ctx context.Context, c cache.Cache) error {
			ids, err := c.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list cache: %w", err)
			}
			if len(ids) == 0 {
				fmt.Println("No cached timelines found.")
				return nil
			}

			fmt.Printf("Found %d cached timeline(s):\n", len(ids))
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		})
	},
}

// cacheClearCmd removes every cached timeline
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached timelines",
	Long:  `Remove every cached timeline, including the legacy aggregate entry. Settings are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(ctx context.Context, c cache.Cache) error {
			removed, err := c.ClearAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Printf("Removed %d cache key(s).\n", removed)
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
