package admin

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/spf13/cobra"
)

// IngestCmd runs the ingestion pipeline in-process for local files and
// waits for every job to finish.
func IngestCmd() *cobra.Command {
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest local files without the API server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			p, err := newPipeline(ctx, cfg, pool, log)
			if err != nil {
				return err
			}

			var jobIDs []string
			for _, path := range args {
				out, err := uploadFile(ctx, p.ingestion, path, chunkSize)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				jobIDs = append(jobIDs, out.JobID)
			}

			p.ingestion.Wait()

			w := cmd.OutOrStdout()
			var failed int
			for _, id := range jobIDs {
				job, err := p.tracker.Get(id)
				if err != nil {
					return err
				}
				if job.Status == domain.JobStatusFailed {
					failed++
					fmt.Fprintf(w, "FAILED  %s (document %d): %s\n", job.Filename, job.DocumentID, job.Error)
					continue
				}
				fmt.Fprintf(w, "OK      %s (document %d): %d chunks\n", job.Filename, job.DocumentID, job.Result.NumChunks)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(jobIDs))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Max tokens per chunk (default RAGDOCS_DEFAULT_CHUNK_SIZE)")

	return cmd
}

func uploadFile(ctx context.Context, svc *service.IngestionService, path string, chunkSize int) (*service.UploadOutput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return svc.Upload(ctx, service.UploadInput{
		Filename:    filepath.Base(path),
		Content:     f,
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		ChunkSize:   chunkSize,
	})
}
