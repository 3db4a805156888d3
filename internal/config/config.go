// Package config holds tagfdd's runtime configuration: socket paths,
// registry sizing, and the daemon's bounded long-poll window.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the flat set of knobs tagfdd and its reference clients read at
// startup. There is no config file format; every field has a default (the
// socket paths follow $XDG_RUNTIME_DIR when it is set), and cmd/tagfdd's
// flags override the socket paths, the capacity and the long-poll window.
type Config struct {
	// SocketPath is where the daemon listens for the tag read/write HTTP
	// API, over a Unix domain socket left world read/write (0666): any
	// local client may open, read, and write an existing tag.
	SocketPath string

	// AdminSocketPath is a sibling socket, left owner-only (0600), where the
	// daemon listens for the administrative creation API. It never shares a
	// listener or file descriptor with SocketPath, so a client confined to
	// the world-accessible socket can never reach tag creation.
	AdminSocketPath string

	// LogDBPath is where cmd/tagfd-logd keeps its SQLite log of observed
	// values, when it is run.
	LogDBPath string

	// RegistryCapacity bounds the number of live tags a Core will accept
	// (CAPACITY_EXHAUSTED beyond this).
	RegistryCapacity int

	// LongPollWindow bounds how long the daemon holds open a blocking read
	// request before returning EINTR (HTTP 499), independent of the core's own
	// unbounded blocking contract — a transport-level courtesy so an idle
	// HTTP connection doesn't sit open forever.
	LongPollWindow time.Duration

	// ConnectTimeout is a dial timeout for reference clients. No client in
	// this module reads it; tagclient dials with no separate connect timeout.
	ConnectTimeout time.Duration

	// RequestTimeout is a round-trip bound for non-polling requests. No
	// client in this module reads it; tagclient bounds those requests with
	// its own 10-second default (see tagclient.Client.WithUnaryTimeout).
	RequestTimeout time.Duration
}

// DefaultConfig returns tagfdd's defaults: a per-user runtime socket, a
// per-user state-dir log database, a generous but finite tag capacity, and
// a 30-second long-poll window.
func DefaultConfig() Config {
	socketPath := defaultSocketPath()
	return Config{
		SocketPath:       socketPath,
		AdminSocketPath:  socketPath + ".master",
		LogDBPath:        defaultLogDBPath(),
		RegistryCapacity: 4096,
		LongPollWindow:   30 * time.Second,
		ConnectTimeout:   3 * time.Second,
		RequestTimeout:   5 * time.Second,
	}
}

func defaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "tagfd", "tagfdd.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tagfdd.sock"
	}
	return filepath.Join(home, ".local", "state", "tagfd", "tagfdd.sock")
}

func defaultLogDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tagfd-log.db"
	}
	return filepath.Join(home, ".local", "state", "tagfd", "log.db")
}
