package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/cloud"
	"github.com/fieldpost/fieldpost/internal/output"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/sync"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push unsynced submissions to the cloud now",
	Long: `Runs one sync cycle: checks connectivity, takes the oldest unsynced
submissions up to the batch size, and delivers each one to the cloud
with signed, retry-bounded requests. Submissions stay local until the
cloud acknowledges them, so interrupting a cycle is always safe.`,
	GroupID: "run",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dataDir()
		jsonOut, _ := cmd.Flags().GetBool("json")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		st, err := store.Open(dir)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		if dryRun {
			return printPending(st, batchSize, jsonOut)
		}

		cfg := syncconfig.Load(dir)
		engine := sync.New(st, newCloudClient(cfg), cfg, sync.Options{BatchSize: batchSize})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := engine.RunCycle(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			if jsonOut {
				output.JSONError(output.ErrCodeSyncError, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}

		if jsonOut {
			return output.JSON(reportJSON(report))
		}
		printReport(report)
		if errors.Is(err, context.Canceled) {
			output.Warning("cycle interrupted; remaining submissions stay queued")
		}
		return nil
	},
}

// newCloudClient builds the cloud client for the configured base URL.
func newCloudClient(cfg *syncconfig.Config) *cloud.Client {
	return cloud.New(cfg.ResolvedBaseURL())
}

// printPending lists what a cycle would push, without touching the network.
func printPending(st *store.Store, batchSize int, jsonOut bool) error {
	if batchSize <= 0 {
		batchSize = sync.DefaultOptions().BatchSize
	}
	subs, err := st.ListUnsynced(batchSize)
	if err != nil {
		output.Error("%v", err)
		return err
	}

	if jsonOut {
		return output.JSON(subs)
	}
	if len(subs) == 0 {
		output.Info("Nothing to sync")
		return nil
	}
	output.Info("Would push %d submission(s):", len(subs))
	for i := range subs {
		fmt.Println("  " + output.FormatSubmissionLine(&subs[i]))
	}
	return nil
}

func printReport(r sync.Report) {
	if r.Skipped != "" {
		output.Info("Sync skipped: %s", r.Skipped)
		return
	}
	if r.Total == 0 {
		output.Info("Nothing to sync")
		return
	}

	if r.Success == r.Total {
		output.Success("Delivered %d/%d submission(s)", r.Success, r.Total)
	} else {
		output.Warning("Delivered %d/%d submission(s)", r.Success, r.Total)
	}
	for _, item := range r.Items {
		if item.Delivered {
			continue
		}
		output.Error("#%d failed after %d attempt(s): %s", item.ID, item.Attempts, item.Reason)
	}
}

type reportOut struct {
	Skipped   string    `json:"skipped,omitempty"`
	Delivered int       `json:"delivered"`
	Total     int       `json:"total"`
	Items     []itemOut `json:"items,omitempty"`
}

type itemOut struct {
	ID        int64  `json:"id"`
	Attempts  int    `json:"attempts"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

func reportJSON(r sync.Report) reportOut {
	out := reportOut{Skipped: r.Skipped, Delivered: r.Success, Total: r.Total}
	for _, item := range r.Items {
		out.Items = append(out.Items, itemOut(item))
	}
	return out
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Int("batch-size", 0, "Submissions per cycle (default 10)")
	syncCmd.Flags().Bool("dry-run", false, "List what would be pushed without sending")
	syncCmd.Flags().Bool("json", false, "Output as JSON")
}
