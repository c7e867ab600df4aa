package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		k          int
		documentID int64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search document chunks",
		Long:  "Embeds the query and returns the most similar chunks by cosine distance.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := SearchRequest{Query: strings.Join(args, " "), K: k}
			if documentID > 0 {
				req.DocumentID = &documentID
			}

			resp, err := api.Post(cmd.Context(), "/search", req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			var searchResp SearchResponse
			if err := resp.Decode(&searchResp); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(w, searchResp)
			}
			if len(searchResp.Results) == 0 {
				fmt.Fprintln(w, "No results found.")
				return nil
			}

			fmt.Fprintf(w, "Found %d results:\n\n", len(searchResp.Results))
			for i, r := range searchResp.Results {
				fmt.Fprintf(w, "%d. document %d, chunk %d (%.3f)\n", i+1, r.DocumentID, r.Chunk.ChunkIndex, r.Score)
				if len(r.Chunk.Metadata.Headings) > 0 {
					fmt.Fprintf(w, "   %s\n", strings.Join(r.Chunk.Metadata.Headings, " > "))
				}
				fmt.Fprintf(w, "   %s\n", snippet(r.Chunk.Text, 200))
				if i < len(searchResp.Results)-1 {
					fmt.Fprintln(w, strings.Repeat("-", 40))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 5, "Number of results")
	cmd.Flags().Int64Var(&documentID, "document", 0, "Only search within this document")

	return cmd
}
