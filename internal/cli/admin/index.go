package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragdocs/internal/repository"
	"github.com/spf13/cobra"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector similarity index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Build the HNSW index if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChunks(func(ctx context.Context, chunks *repository.ChunkRepository) error {
				if err := chunks.EnsureVectorIndex(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index %s ready\n", repository.VectorIndexName)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the HNSW index exists and is valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChunks(func(ctx context.Context, chunks *repository.ChunkRepository) error {
				valid, err := chunks.HasVectorIndex(ctx)
				if err != nil {
					return fmt.Errorf("failed to inspect index: %w", err)
				}
				state := "missing"
				if valid {
					state = "valid"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", repository.VectorIndexName, state)
				return nil
			})
		},
	})

	return cmd
}

func withChunks(fn func(ctx context.Context, chunks *repository.ChunkRepository) error) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, repository.NewChunkRepository(pool))
}
