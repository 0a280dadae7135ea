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

	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/notify"
	"github.com/fieldpost/fieldpost/internal/server"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/sync"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake HTTP server",
	Long: `Starts the local intake server. Devices on the network submit forms to
it over HTTP and every accepted submission is committed to the local
database before the device gets its response.

When auto_sync is enabled in the sync configuration, a background
ticker pushes unsynced submissions to the cloud at the configured
interval.`,
	GroupID: "run",
	RunE: func(cmd *cobra.Command, args []string) error {
		// .env is a convenience for field installs; absence is normal
		godotenv.Load()

		cfg := server.LoadConfig()
		if dirFlag != "" {
			cfg.DataDir = dirFlag
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ListenAddr = addr
		}

		setupLogging(cfg.LogFormat, cfg.LogLevel)

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			slog.Error("open store", "err", err)
			return err
		}
		defer st.Close()

		srv, err := server.NewServer(cfg, st)
		if err != nil {
			slog.Error("create server", "err", err)
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Start(); err != nil {
			slog.Error("start server", "err", err)
			return err
		}
		slog.Info("intake server started", "addr", cfg.ListenAddr, "dir", cfg.DataDir)
		st.LogEvent(models.LogInfo, "server", "intake server started on "+cfg.ListenAddr)

		scfg := syncconfig.Load(cfg.DataDir)
		if scfg.AutoSync {
			notifier := notify.New(cfg.WebhookURL, cfg.WebhookSecret)
			go autoSyncLoop(ctx, st, scfg, notifier)
		}

		<-ctx.Done()
		slog.Info("shutting down")
		st.LogEvent(models.LogInfo, "server", "intake server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "err", err)
		}
		return nil
	},
}

// autoSyncLoop pushes unsynced submissions in the background while the
// server runs. A cycle that finds sync disabled or the network down is a
// quiet skip; the ticker just tries again next interval.
func autoSyncLoop(ctx context.Context, st *store.Store, cfg *syncconfig.Config, notifier *notify.Notifier) {
	engine := sync.New(st, newCloudClient(cfg), cfg, sync.DefaultOptions())

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := engine.RunCycle(ctx)
			switch {
			case errors.Is(err, sync.ErrCycleRunning):
				// Previous cycle still going; skip this tick
			case errors.Is(err, context.Canceled):
				return
			case err != nil:
				slog.Warn("auto sync cycle failed", "err", err)
			case report.Skipped == "" && report.Total > 0:
				slog.Info("auto sync cycle", "delivered", report.Success, "total", report.Total)
				notifier.Announce(notify.SyncCompleted(report.Success, report.Total))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default $FIELDPOST_ADDR or :8080)")
}
