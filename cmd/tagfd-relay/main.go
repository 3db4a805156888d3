// Command tagfd-relay bridges one tag's committed values onto stdout, one
// line per change, in either the machine-readable or human-readable
// textual encoding.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hmsnyder/tagfd/internal/config"
	"github.com/hmsnyder/tagfd/internal/relay"
	"github.com/hmsnyder/tagfd/internal/tagclient"
)

func main() {
	cfg := config.DefaultConfig()
	socket := flag.String("socket", cfg.SocketPath, "tagfdd UDS path")
	tagName := flag.String("tag", "", "tag name to relay (required)")
	human := flag.Bool("human", false, "emit the human-readable encoding instead of the machine-readable one")
	once := flag.Bool("once", false, "emit a single line and exit")
	flag.Parse()

	if *tagName == "" {
		fatal(fmt.Errorf("missing required -tag flag"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	format := relay.Machine
	if *human {
		format = relay.Human
	}

	client := tagclient.New(*socket)
	err := relay.Run(ctx, client, os.Stdout, relay.Options{
		TagName: *tagName,
		Format:  format,
		Once:    *once,
	})
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "tagfd-relay: %v\n", err)
	os.Exit(1)
}
