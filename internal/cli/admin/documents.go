package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/repository"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/spf13/cobra"
)

// DocumentsCmd inspects and removes documents directly in the database,
// without going through the API.
func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Inspect and delete stored documents",
	}

	cmd.PersistentFlags().StringP("output", "o", "text", "Output format (text or json)")

	cmd.AddCommand(documentsListCmd())
	cmd.AddCommand(documentsGetCmd())
	cmd.AddCommand(documentsDeleteCmd())
	cmd.AddCommand(documentsChunksCmd())

	return cmd
}

func documentsListCmd() *cobra.Command {
	var (
		skip   int
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := service.ListDocumentsInput{Offset: skip, Limit: limit}
			if status != "" {
				s, err := domain.ParseDocumentStatus(status)
				if err != nil {
					return err
				}
				input.Status = s
			}

			return withDocuments(func(ctx context.Context, svc *service.DocumentService) error {
				out, err := svc.List(ctx, input)
				if err != nil {
					return fmt.Errorf("failed to list documents: %w", err)
				}

				w := cmd.OutOrStdout()
				if outputFormat(cmd) == "json" {
					items := make([]documentRow, len(out.Documents))
					for i, d := range out.Documents {
						items[i] = toDocumentRow(d)
					}
					return writeJSON(w, map[string]any{
						"total":     out.Total,
						"skip":      out.Offset,
						"limit":     out.Limit,
						"documents": items,
					})
				}

				if len(out.Documents) == 0 {
					fmt.Fprintln(w, "No documents found")
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tCHUNKS\tCREATED")
				for _, d := range out.Documents {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", d.ID, d.Filename, d.Status, d.NumChunks, d.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if shown := out.Offset + len(out.Documents); shown < out.Total {
					fmt.Fprintf(w, "\n%d of %d shown. Use --skip %d for more\n", shown, out.Total, shown)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of documents to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (processing, completed, failed)")

	return cmd
}

func documentsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDocuments(func(ctx context.Context, svc *service.DocumentService) error {
				doc, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if outputFormat(cmd) == "json" {
					return writeJSON(w, toDocumentRow(doc))
				}
				fmt.Fprintf(w, "ID:        %d\n", doc.ID)
				fmt.Fprintf(w, "Filename:  %s\n", doc.Filename)
				fmt.Fprintf(w, "Status:    %s\n", doc.Status)
				if doc.ErrorMessage != "" {
					fmt.Fprintf(w, "Error:     %s\n", doc.ErrorMessage)
				}
				fmt.Fprintf(w, "Size:      %d bytes\n", doc.FileSize)
				fmt.Fprintf(w, "Chunks:    %d (max %d tokens)\n", doc.NumChunks, doc.ChunkSize)
				fmt.Fprintf(w, "Model:     %s (%d)\n", doc.EmbeddingModel, doc.EmbeddingDimension)
				fmt.Fprintf(w, "Created:   %s\n", doc.CreatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func documentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDocuments(func(ctx context.Context, svc *service.DocumentService) error {
				if err := svc.Delete(ctx, id); err != nil {
					return err
				}
				if outputFormat(cmd) == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"id": id, "deleted": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Document %d deleted\n", id)
				return nil
			})
		},
	}
}

func documentsChunksCmd() *cobra.Command {
	var (
		skip  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "chunks <id>",
		Short: "List a document's chunks in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDocuments(func(ctx context.Context, svc *service.DocumentService) error {
				out, err := svc.ListChunks(ctx, id, skip, limit)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if outputFormat(cmd) == "json" {
					items := make([]map[string]any, len(out.Chunks))
					for i, c := range out.Chunks {
						items[i] = map[string]any{
							"id":          c.ID,
							"chunk_index": c.ChunkIndex,
							"text":        c.Text,
							"text_length": c.TextLength,
							"metadata":    c.Metadata,
						}
					}
					return writeJSON(w, map[string]any{
						"document_id":  out.DocumentID,
						"total_chunks": out.Total,
						"chunks":       items,
					})
				}

				for _, c := range out.Chunks {
					fmt.Fprintf(w, "[%d] #%d %s\n", c.ChunkIndex, c.ID, domain.Truncate(c.Text, 80))
				}
				fmt.Fprintf(w, "\n%d chunks total\n", out.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of chunks to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")

	return cmd
}

type documentRow struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	FileSize     int64  `json:"file_size"`
	NumChunks    int    `json:"num_chunks"`
	ChunkSize    int    `json:"chunk_size"`
	CreatedAt    string `json:"created_at"`
}

func toDocumentRow(d *domain.Document) documentRow {
	return documentRow{
		ID:           d.ID,
		Filename:     d.Filename,
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		FileSize:     d.FileSize,
		NumChunks:    d.NumChunks,
		ChunkSize:    d.ChunkSize,
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func withDocuments(fn func(ctx context.Context, svc *service.DocumentService) error) error {
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

	archive, err := newArchive(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := service.NewDocumentService(
		repository.NewDocumentRepository(pool, log),
		repository.NewChunkRepository(pool),
		archive,
		log,
	)
	return fn(ctx, svc)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
