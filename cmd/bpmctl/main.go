// Package main is the entry point for bpmctl, the record library operator CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sebasr/bpmetrics/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
