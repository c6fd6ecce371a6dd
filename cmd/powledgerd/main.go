// powledger node daemon.
//
// Usage:
//
//	powledgerd [--difficulty=N --clear-policy=included|all]  Run node
//	powledgerd --help                                         Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Klingon-tech/powledger/config"
	"github.com/Klingon-tech/powledger/internal/node"
)

// statusInterval is how often the daemon logs a status line.
const statusInterval = time.Minute

func main() {
	cfg, _, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// A signal during genesis mining aborts startup.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}
	go n.RunStatusLoop(statusInterval)

	<-ctx.Done()

	n.Stop()
}
