package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jpalmerr/statusfeed"
)

func main() {
	// persist in the temp dir so restarts of the demo keep the feed
	sn, err := statusfeed.OpenSnapshotter("file", filepath.Join(os.TempDir(), "statusfeed-demo.cbor"))
	if err != nil {
		slog.Error("failed to open snapshot file", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sn.Close() }()

	svc, err := statusfeed.New(
		statusfeed.WithPort(8080),
		statusfeed.WithTitle("StatusFeed Demo"),
		statusfeed.WithSnapshotter(sn),
		statusfeed.WithFlushInterval(2*time.Second),
		statusfeed.WithEventCallback(func(ev statusfeed.Event) {
			slog.Info("status event", "kind", ev.Kind, "identity", ev.Identity, "message", ev.Record.Message)
		}),
	)
	if err != nil {
		slog.Error("failed to create statusfeed", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   StatusFeed Demo                                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Three simulated users post every few seconds.       ║")
	fmt.Println("  ║   Pick any name in the page to join in.               ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// chatter (see chatter.go) talks to the HTTP API like any other client
	go RunChatter(ctx, "http://localhost:8080")

	if err := svc.Start(ctx); err != nil {
		slog.Error("statusfeed error", "error", err)
		os.Exit(1)
	}
}
