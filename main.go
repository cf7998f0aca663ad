package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lifelog-migrate/pkg/cli"
	"lifelog-migrate/pkg/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		stop()
		os.Exit(1)
	}
}
