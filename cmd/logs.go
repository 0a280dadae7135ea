package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/output"
	"github.com/fieldpost/fieldpost/internal/store"
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	Short:   "Show recent system log entries",
	Long:    `Shows the system log: server lifecycle events and sync cycle results, newest first.`,
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOut, _ := cmd.Flags().GetBool("json")

		st, err := store.Open(dataDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		entries, err := st.RecentLogs(limit)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut {
			return output.JSON(entries)
		}
		if len(entries) == 0 {
			output.Info("No log entries")
			return nil
		}
		for _, e := range entries {
			fmt.Println(output.FormatLogLine(e))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().Int("limit", 50, "Maximum entries to show")
	logsCmd.Flags().Bool("json", false, "Output as JSON")
}
