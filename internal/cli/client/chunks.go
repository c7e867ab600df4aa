package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ChunksCmd creates the chunks command.
func ChunksCmd() *cobra.Command {
	var (
		skip   int
		limit  int
		deleteID int64
	)

	cmd := &cobra.Command{
		Use:   "chunks <document_id>",
		Short: "List a document's chunks in order",
		Long:  "Lists a document's chunks in order. With --delete, removes a single chunk by its id instead.",
		Args: func(cmd *cobra.Command, args []string) error {
			if deleteID > 0 {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if deleteID > 0 {
				if _, err := api.Delete(cmd.Context(), fmt.Sprintf("/chunks/%d", deleteID)); err != nil {
					return fmt.Errorf("failed to delete chunk: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chunk %d deleted\n", deleteID)
				return nil
			}

			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			q := url.Values{}
			q.Set("skip", strconv.Itoa(skip))
			q.Set("limit", strconv.Itoa(limit))

			resp, err := api.Get(cmd.Context(), fmt.Sprintf("/documents/%d/chunks?%s", id, q.Encode()))
			if err != nil {
				return fmt.Errorf("failed to list chunks: %w", err)
			}
			var list ChunkList
			if err := resp.Decode(&list); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, list)
			}
			if len(list.Chunks) == 0 {
				fmt.Fprintln(w, "No chunks found.")
				return nil
			}
			for i, c := range list.Chunks {
				fmt.Fprintf(w, "[%d] chunk %d, %d tokens\n", c.ChunkIndex, c.ID, c.Metadata.TokenCount)
				if len(c.Metadata.Headings) > 0 {
					fmt.Fprintf(w, "    %s\n", strings.Join(c.Metadata.Headings, " > "))
				}
				fmt.Fprintf(w, "    %s\n", snippet(c.Text, 120))
				if i < len(list.Chunks)-1 {
					fmt.Fprintln(w, strings.Repeat("-", 40))
				}
			}
			if list.HasMore {
				fmt.Fprintf(w, "\n%d chunks total. Use --skip %d for more\n", list.TotalChunks, list.Skip+len(list.Chunks))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of chunks to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().Int64Var(&deleteID, "delete", 0, "Delete the chunk with this id")

	return cmd
}

// snippet flattens whitespace and cuts s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
