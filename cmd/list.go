package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/output"
	"github.com/fieldpost/fieldpost/internal/store"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent submissions",
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		unsyncedOnly, _ := cmd.Flags().GetBool("unsynced")
		jsonOut, _ := cmd.Flags().GetBool("json")

		st, err := store.Open(dataDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		var subs []models.Submission
		if unsyncedOnly {
			subs, err = st.ListUnsynced(limit)
		} else {
			subs, err = st.List(limit)
		}
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut {
			return output.JSON(subs)
		}

		if len(subs) == 0 {
			if unsyncedOnly {
				output.Info("No unsynced submissions")
			} else {
				output.Info("No submissions yet")
			}
			return nil
		}
		for i := range subs {
			fmt.Println(output.FormatSubmissionLine(&subs[i]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Int("limit", 20, "Maximum submissions to show")
	listCmd.Flags().Bool("unsynced", false, "Show only unsynced submissions, oldest first")
	listCmd.Flags().Bool("json", false, "Output as JSON")
}
