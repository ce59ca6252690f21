package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/systmms/envmanage/cmd/envmanage/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Ctrl-C cancels the context so show-dashboard can stop kubectl proxy
	// and return normally.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := commands.NewRootCommand(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
	return rootCmd.ExecuteContext(ctx)
}
