package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zatekoja/carecompanion/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(cli.DefaultBuilder).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
