package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cloo-solutions/ragdocs/internal/cli"
	"github.com/cloo-solutions/ragdocs/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := client.NewRootCmd(version)
	cli.AddHelpJSONFlag(rootCmd)

	if handled, err := cli.HandleHelpJSON(os.Stdout, rootCmd, os.Args[1:]); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
