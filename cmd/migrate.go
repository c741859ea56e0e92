package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending schema migrations to the configured database
(DATABASE_DRIVER) and exit. The server also migrates on start.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if len(b.applied) == 0 {
		fmt.Println("Database is up to date.")
		return nil
	}
	for _, file := range b.applied {
		fmt.Printf("Applied %s\n", file)
	}
	return nil
}
