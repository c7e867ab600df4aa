package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// DocumentsCmd creates the documents parent command.
func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List, inspect, rename and delete documents",
	}

	cmd.AddCommand(documentsListCmd())
	cmd.AddCommand(documentsGetCmd())
	cmd.AddCommand(documentsRenameCmd())
	cmd.AddCommand(documentsDeleteCmd())
	cmd.AddCommand(documentsDownloadCmd())

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
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("skip", strconv.Itoa(skip))
			q.Set("limit", strconv.Itoa(limit))
			if status != "" {
				q.Set("status", status)
			}

			resp, err := api.Get(cmd.Context(), "/documents?"+q.Encode())
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}
			var list DocumentList
			if err := resp.Decode(&list); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, list)
			}
			if len(list.Documents) == 0 {
				fmt.Fprintln(w, "No documents found.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tCHUNKS\tCREATED")
			for _, d := range list.Documents {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", d.ID, d.Filename, d.Status, d.NumChunks, d.CreatedAt)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if list.HasMore {
				fmt.Fprintf(w, "\nMore results available. Use --skip %d\n", list.Skip+len(list.Documents))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of documents to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (processing, completed, failed)")

	return cmd
}

func documentsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <document_id>",
		Aliases: []string{"view"},
		Short:   "Show a document with a preview of its markdown",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), fmt.Sprintf("/documents/%d", id))
			if err != nil {
				return fmt.Errorf("failed to get document: %w", err)
			}
			var doc Document
			if err := resp.Decode(&doc); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, doc)
			}
			fmt.Fprintf(w, "# %s\n\n", doc.Filename)
			fmt.Fprintf(w, "ID: %d | Status: %s | Chunks: %d | Size: %d bytes\n", doc.ID, doc.Status, doc.NumChunks, doc.FileSize)
			fmt.Fprintf(w, "Model: %s (%d) | Chunk size: %d\n", doc.EmbeddingModel, doc.EmbeddingDimension, doc.ChunkSize)
			if doc.ErrorMessage != "" {
				fmt.Fprintf(w, "Error: %s\n", doc.ErrorMessage)
			}
			if doc.MarkdownPreview != "" {
				fmt.Fprintln(w, strings.Repeat("-", 40))
				fmt.Fprintln(w, doc.MarkdownPreview)
			}
			return nil
		},
	}
}

func documentsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <document_id> <filename>",
		Short: "Change a document's filename",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Put(cmd.Context(), fmt.Sprintf("/documents/%d", id), map[string]string{"filename": args[1]})
			if err != nil {
				return fmt.Errorf("failed to rename document: %w", err)
			}
			var doc Document
			if err := resp.Decode(&doc); err != nil {
				return err
			}

			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %d renamed to %s\n", doc.ID, doc.Filename)
			return nil
		},
	}
}

func documentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <document_id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document and all its chunks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete(cmd.Context(), fmt.Sprintf("/documents/%d", id)); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}

			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "deleted": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %d deleted\n", id)
			return nil
		},
	}
}

func documentsDownloadCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <document_id>",
		Short: "Download the archived original file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), fmt.Sprintf("/documents/%d/download", id))
			if err != nil {
				return fmt.Errorf("failed to get download URL: %w", err)
			}
			var link struct {
				DocumentID int64  `json:"document_id"`
				URL        string `json:"url"`
			}
			if err := resp.Decode(&link); err != nil {
				return err
			}

			if outputPath == "" {
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), link)
				}
				fmt.Fprintln(cmd.OutOrStdout(), link.URL)
				return nil
			}

			if err := api.DownloadFile(cmd.Context(), link.URL, outputPath, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "file", "f", "", "Write the original to this path instead of printing the URL")

	return cmd
}

func parseDocumentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}
