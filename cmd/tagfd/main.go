// Command tagfd is the human-facing CLI: create, read, write, list, and
// watch tags against a running tagfdd.
package main

import (
	"context"
	"os"

	"github.com/hmsnyder/tagfd/internal/cli"
	"github.com/hmsnyder/tagfd/internal/config"
)

func main() {
	cfg := config.DefaultConfig()
	r := cli.NewRunner(cfg.SocketPath, os.Stdout, os.Stderr)
	os.Exit(r.Run(context.Background(), os.Args[1:]))
}
