// Command tagfd-logd is the SQLite logger: it attaches to one tag over
// tagfdd's socket and persists every observed value into a durable,
// queryable log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hmsnyder/tagfd/internal/config"
	"github.com/hmsnyder/tagfd/internal/relay"
	"github.com/hmsnyder/tagfd/internal/sqlitelog"
	"github.com/hmsnyder/tagfd/internal/tagclient"
)

func main() {
	cfg := config.DefaultConfig()
	socket := flag.String("socket", cfg.SocketPath, "tagfdd UDS path")
	dbPath := flag.String("db", cfg.LogDBPath, "SQLite log database path")
	tagName := flag.String("tag", "", "tag name to log (required)")
	runID := flag.String("run-id", "", "run identifier recorded with each row (default: a generated UUID)")
	flag.Parse()

	if *tagName == "" {
		fatal(fmt.Errorf("missing required -tag flag"))
	}
	if *runID == "" {
		*runID = uuid.NewString()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := sqlitelog.Open(ctx, *dbPath)
	if err != nil {
		fatal(fmt.Errorf("open log database: %w", err))
	}
	defer store.Close() //nolint:errcheck

	client := tagclient.New(*socket)
	if err := run(ctx, client, store, *tagName, *runID); err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

// run blocks on tagName's value, appending one row per observed change to
// store until ctx is cancelled. It shares relay's retry/backoff policy for
// the blocking read but writes to a durable store instead of stdout.
func run(ctx context.Context, client *tagclient.Client, store *sqlitelog.Store, tagName, runID string) error {
	minBackoff := 250 * time.Millisecond
	maxBackoff := 4 * time.Second
	backoff := minBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, err := client.Read(ctx, tagName, false)
		if err != nil {
			if !relay.RetryableError(err) {
				return fmt.Errorf("read %s: %w", tagName, err)
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff

		textValue := relay.EmitMachine(v)
		if err := store.Append(ctx, runID, tagName, v, textValue); err != nil {
			return fmt.Errorf("append observation: %w", err)
		}
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "tagfd-logd: %v\n", err)
	os.Exit(1)
}
