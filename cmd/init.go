package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/output"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the data directory",
	Long:    `Creates the data directory, the submission database, the uploads folder and a default sync configuration (sync disabled).`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dataDir()

		if _, err := os.Stat(filepath.Join(dir, "fieldpost.db")); err == nil {
			output.Warning("%s already initialized", dir)
			return nil
		}

		st, err := store.Initialize(dir)
		if err != nil {
			output.Error("initialize database: %v", err)
			return err
		}
		defer st.Close()

		if err := os.MkdirAll(filepath.Join(dir, "uploads"), 0755); err != nil {
			output.Error("create uploads dir: %v", err)
			return err
		}

		// Writes the default config (sync disabled) when none exists
		syncconfig.Load(dir)

		if err := st.LogEvent(models.LogInfo, "system", "data directory initialized"); err != nil {
			output.Warning("could not record init event: %v", err)
		}

		output.Success("Initialized %s", dir)
		fmt.Println("Next steps:")
		fmt.Println("  fieldpost serve                     start accepting submissions")
		fmt.Println("  fieldpost config set sync.api_key   configure cloud sync")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
