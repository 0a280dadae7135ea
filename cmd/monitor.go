package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/output"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/sync"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
	"github.com/fieldpost/fieldpost/internal/tui/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of submissions and sync state",
	Long: `Launch a live-updating dashboard showing:
- Submission counts (total, today, unsynced, by form type)
- Sync configuration and last cycle time
- Recent submissions

Key bindings:
  r    Refresh now
  s    Run a sync cycle
  q    Quit`,
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dataDir()

		st, err := store.Open(dir)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		cfg := syncconfig.Load(dir)
		engine := sync.New(st, newCloudClient(cfg), cfg, sync.DefaultOptions())

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		model := monitor.NewModel(st, engine, interval)

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval (default 2s)")
}
