// Command feed2imap appends new RSS and Atom entries to an IMAP folder.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/feed2imap/internal/app"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, app.ErrFeedsFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := app.New(os.Stdout, os.Stderr)
	if err := a.Execute(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, app.ErrFeedsFailed) {
			a.Logger().Warn("some feeds failed", slog.String("error", err.Error()))
			return err
		}
		fmt.Fprintf(os.Stderr, "feed2imap: %v\n", err)
		return err
	}
	return nil
}
