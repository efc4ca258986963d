package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/application/service"
	domainsync "github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/internal/log"
)

func syncCmd() *cobra.Command {
	var (
		envFile    string
		category   string
		batchSize  int
		withImages bool
		reset      bool
	)

	cmd := &cobra.Command{
		Use:   "sync [platform]",
		Short: "Sync a platform catalog into the index",
		Long: `Pull a platform's catalog into the local store and index it.

Without a platform argument, only the indexing phase runs: records
already in the store past the checkpoint are embedded and upserted.
Interrupting the run is safe; the next sync resumes from the last
committed batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := ""
			if len(args) > 0 {
				platform = args[0]
			}
			return runSync(envFile, platform, category, batchSize, withImages, reset)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&category, "category", "", "Only fetch items in this category")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per indexing batch (default: 32)")
	cmd.Flags().BoolVar(&withImages, "with-images", false, "Embed product images as well")
	cmd.Flags().BoolVar(&reset, "reset", false, "Discard the checkpoint and re-index from scratch")

	return cmd
}

func runSync(envFile, platform, category string, batchSize int, withImages, reset bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	opts, err := clientOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, shopvec.WithLogger(slogger))

	client, err := shopvec.New(opts...)
	if err != nil {
		return fmt.Errorf("create shopvec client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close shopvec client", slog.Any("error", err))
		}
	}()

	// Ctrl-C cancels the run; the checkpoint keeps committed batches.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bar := newSyncBar()
	progress := func(stats domainsync.Stats) {
		_ = bar.Set(stats.TotalIndexed() + stats.TotalFailed())
	}

	var result service.RunResult
	if platform != "" {
		result, err = client.Sync.SyncPlatform(ctx, service.SyncPlatformParams{
			Platform:   platform,
			Category:   category,
			BatchSize:  batchSize,
			WithImages: withImages,
			Reset:      reset,
			Progress:   progress,
		})
	} else {
		result, err = client.Sync.Run(ctx, service.RunParams{
			BatchSize:  batchSize,
			WithImages: withImages,
			Reset:      reset,
			Progress:   progress,
		})
	}
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	stats := result.Stats()
	fmt.Printf("sync %s: %d fetched, %d indexed, %d failed in %s (checkpoint %d)\n",
		result.State(),
		stats.TotalFetched(),
		stats.TotalIndexed(),
		stats.TotalFailed(),
		stats.Elapsed().Round(10*time.Millisecond),
		result.LastProcessedID(),
	)

	return nil
}

// newSyncBar creates an indeterminate progress bar: the total record
// count is unknown until the connector finishes paging.
func newSyncBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSpinnerType(14),
	)
}
