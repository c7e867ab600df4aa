package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd assembles the ragdocs client command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragdocs",
		Short: "ragdocs CLI - upload, inspect and search documents",
		Long: `ragdocs CLI talks to a ragdocs API server.

Environment variables:
  RAGDOCS_API_URL   API base URL (default: http://localhost:8008)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")

	rootCmd.AddCommand(UploadCmd())
	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(DocumentsCmd())
	rootCmd.AddCommand(ChunksCmd())
	rootCmd.AddCommand(SearchCmd())
	rootCmd.AddCommand(ConfigCmd())

	return rootCmd
}

func wantJSON(cmd *cobra.Command) bool {
	outputJSON, _ := cmd.Flags().GetBool("output")
	return outputJSON
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
