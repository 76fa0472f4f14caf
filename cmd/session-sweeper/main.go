// Command session-sweeper deletes stale checkout sessions. Sessions are
// never deleted by the engine itself; abandoned carts are garbage-collected
// out of band by running this periodically. Completed sessions are kept.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/nordkart/checkout-api/internal/domain/checkout"
	"github.com/nordkart/checkout-api/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		maxAge      time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&maxAge, "max-age", 24*time.Hour, "delete non-completed sessions older than this")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, databaseURL, maxAge); err != nil {
		slog.Error("sweep failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, maxAge time.Duration) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	cutoff := time.Now().UTC().Add(-maxAge)
	tag, err := pool.Exec(ctx, `
		DELETE FROM checkout_sessions
		WHERE status <> $1 AND updated_at < $2`,
		checkout.StatusCompleted, cutoff,
	)
	if err != nil {
		return errors.Wrap(err, "delete stale sessions")
	}

	slog.Info("swept stale sessions", "deleted", tag.RowsAffected(), "cutoff", cutoff)
	return nil
}
