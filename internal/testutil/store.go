// Package testutil provides the shared harness every package's tests use
// to stand up a real tagfdd against a temp-dir Unix socket.
package testutil

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/hmsnyder/tagfd/internal/config"
	"github.com/hmsnyder/tagfd/internal/daemon"
	"github.com/hmsnyder/tagfd/internal/tagclient"
	"github.com/hmsnyder/tagfd/internal/tagcore"
)

// StartDaemon starts a tagfdd bound to a socket under t.TempDir(), returns
// a client dialing it plus the underlying core (for tests that need to
// reach past the wire, e.g. to hold the admin channel open directly), and
// registers cleanup to shut the daemon down.
func StartDaemon(t *testing.T, capacity int) (*tagclient.Client, *tagcore.Core) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SocketPath = filepath.Join(t.TempDir(), "tagfdd.sock")
	cfg.AdminSocketPath = cfg.SocketPath + ".master"
	cfg.RegistryCapacity = capacity
	cfg.LongPollWindow = 2 * time.Second

	core := tagcore.New(capacity)
	srv := daemon.NewServerWithCore(cfg, core)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	waitForSocket(t, cfg.SocketPath)
	waitForSocket(t, cfg.AdminSocketPath)

	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	return tagclient.New(cfg.SocketPath), core
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("daemon socket %s never became dialable", path)
}
