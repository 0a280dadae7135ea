package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/sync"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync cycles on an interval until stopped",
	Long: `Daemon mode for installs where the intake server runs elsewhere: runs
one sync cycle immediately, then repeats every sync_interval_seconds
from the sync configuration until interrupted.`,
	GroupID: "run",
	RunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()
		setupLogging(os.Getenv("FIELDPOST_LOG_FORMAT"), os.Getenv("FIELDPOST_LOG_LEVEL"))

		dir := dataDir()
		st, err := store.Open(dir)
		if err != nil {
			slog.Error("open store", "err", err)
			return err
		}
		defer st.Close()

		cfg := syncconfig.Load(dir)
		engine := sync.New(st, newCloudClient(cfg), cfg, sync.DefaultOptions())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("watch started", "dir", dir, "interval", cfg.Interval().String())

		runWatchCycle(ctx, engine)

		ticker := time.NewTicker(cfg.Interval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("watch stopped")
				return nil
			case <-ticker.C:
				runWatchCycle(ctx, engine)
			}
		}
	},
}

func runWatchCycle(ctx context.Context, engine *sync.Engine) {
	report, err := engine.RunCycle(ctx)
	switch {
	case errors.Is(err, context.Canceled):
	case errors.Is(err, sync.ErrCycleRunning):
	case err != nil:
		slog.Warn("sync cycle failed", "err", err)
	case report.Skipped != "":
		slog.Debug("sync cycle skipped", "reason", report.Skipped)
	case report.Total > 0:
		slog.Info("sync cycle", "delivered", report.Success, "total", report.Total)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
