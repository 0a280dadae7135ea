package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/output"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show submission counts and sync state",
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		dir := dataDir()

		st, err := store.Open(dir)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		stats, err := st.Stats()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut {
			return output.JSON(stats)
		}

		fmt.Printf("Total:     %d\n", stats.Total)
		fmt.Printf("Today:     %d\n", stats.Today)
		fmt.Printf("Unsynced:  %d\n", stats.Unsynced)

		if len(stats.ByFormType) > 0 {
			fmt.Print(output.SectionHeader("by form type"))
			types := make([]string, 0, len(stats.ByFormType))
			for t := range stats.ByFormType {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Printf("  %-16s %d\n", t, stats.ByFormType[t])
			}
		}

		cfg := syncconfig.Load(dir)
		fmt.Print(output.SectionHeader("sync"))
		if !cfg.Enabled() {
			fmt.Println("  disabled")
		} else if cfg.LastSyncTime == nil {
			fmt.Println("  enabled, never synced")
		} else {
			fmt.Printf("  enabled, last cycle %s\n", output.FormatTimeAgo(*cfg.LastSyncTime))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Bool("json", false, "Output as JSON")
}
