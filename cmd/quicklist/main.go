package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ytakahashi/quicklist/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("quicklist: %v", err)
	}
}
