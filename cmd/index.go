package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/candidates"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the HNSW candidate index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the HNSW index from the database and save it",
	Long: `Build the HNSW graph from every stored embedding and write it to
MATCH_INDEX_PATH, replacing any saved graph. A running server picks it
up on its next start.`,
	RunE: runIndexRebuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Matching.IndexPath == "" {
		return errors.New("MATCH_INDEX_PATH is required")
	}
	ctx := context.Background()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	index := candidates.NewIndex(candidates.NewLoader(b.embeddings, logger), cfg.Vision.Dim)
	if err := index.Rebuild(ctx); err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if err := index.Save(cfg.Matching.IndexPath); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	fmt.Printf("HNSW index with %d embeddings saved to %s\n", index.Len(), cfg.Matching.IndexPath)
	return nil
}
