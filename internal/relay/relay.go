package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hmsnyder/tagfd/internal/tagclient"
)

// Format selects which textual encoding Run emits.
type Format int

const (
	Machine Format = iota
	Human
)

// Options configures a relay Run loop: retry/backoff bounds around a
// blocking tag read, plus output formatting.
type Options struct {
	TagName         string
	Format          Format
	RetryMinBackoff time.Duration
	RetryMaxBackoff time.Duration

	// Once stops the loop after the first value is emitted, used by tests
	// and by one-shot CLI invocations.
	Once bool
}

// Run blocks on name's tag, emitting one line per observed change to w
// until ctx is cancelled or a non-retryable error occurs. It retries
// transient daemon errors with exponential backoff.
func Run(ctx context.Context, client *tagclient.Client, w io.Writer, opts Options) error {
	minBackoff := opts.RetryMinBackoff
	if minBackoff <= 0 {
		minBackoff = 250 * time.Millisecond
	}
	maxBackoff := opts.RetryMaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 4 * time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	backoff := minBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, err := client.Read(ctx, opts.TagName, false)
		if err != nil {
			if !RetryableError(err) {
				return fmt.Errorf("relay: %w", err)
			}
			if err := sleepWithContext(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff

		line := EmitMachine(v)
		if opts.Format == Human {
			line = EmitHuman(v)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("relay: write line: %w", err)
		}

		if opts.Once {
			return nil
		}
	}
}

// RetryableError reports whether err is a transient daemon condition worth
// retrying (EAGAIN, a long-poll timeout, or a server error), shared by
// Run and cmd/tagfd-logd's own blocking-read loop.
func RetryableError(err error) bool {
	var reqErr *tagclient.RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	const statusClientClosedRequest = 499 // EINTR: the daemon's long-poll window elapsed
	if reqErr.StatusCode == http.StatusNoContent ||
		reqErr.StatusCode == http.StatusRequestTimeout ||
		reqErr.StatusCode == statusClientClosedRequest {
		return true
	}
	return reqErr.StatusCode >= 500
}

func sleepWithContext(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
