package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigCmd manages the stored client configuration.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the stored API URL",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-url <url>",
		Short: "Store the API URL in the user config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := NewAPIClientWithConfig(args[0]); err != nil {
				return err
			}
			if err := SaveGlobalConfig(&GlobalConfig{APIURL: args[0]}); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			path, _ := GetConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "API URL saved to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the API URL in effect and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, apiURL, err := resolveAPIURL(cmd)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]string{"source": string(source), "api_url": apiURL})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API URL: %s (from %s)\n", apiURL, source)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove the stored config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Config removed")
			return nil
		},
	})

	return cmd
}
