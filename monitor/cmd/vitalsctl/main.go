package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitalscan/vitalscan/monitor/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(&cli.Dependencies{}).ExecuteContext(ctx); err != nil {
		cli.NewFormatter(os.Stderr).Error(err.Error())
		cancel()
		os.Exit(1)
	}
}
