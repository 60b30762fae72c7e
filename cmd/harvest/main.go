// cmd/harvest/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/doc-harvest/harvest/internal/cli"
)

func main() {
	// An interrupt cancels the run's context; the crawl finishes the
	// entry in flight, persists its records, and winds down.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
