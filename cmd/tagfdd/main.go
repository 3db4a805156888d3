// Command tagfdd is the tagfd daemon: it owns the core context (registry +
// administrative channel) and fronts it with an HTTP-over-Unix-socket
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hmsnyder/tagfd/internal/config"
	"github.com/hmsnyder/tagfd/internal/daemon"
	"github.com/hmsnyder/tagfd/internal/tagcore"
)

func main() {
	cfg := config.DefaultConfig()
	flag.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "UDS path for tagfdd's world-accessible tag API")
	flag.StringVar(&cfg.AdminSocketPath, "admin-socket", cfg.AdminSocketPath, "UDS path for tagfdd's owner-only admin API (default: <socket>.master)")
	flag.IntVar(&cfg.RegistryCapacity, "capacity", cfg.RegistryCapacity, "maximum number of live tags")
	flag.DurationVar(&cfg.LongPollWindow, "long-poll-window", cfg.LongPollWindow, "maximum duration a blocking read is held open")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this TCP address (e.g. :9090)")
	flag.Parse()

	adminSocketExplicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "admin-socket" {
			adminSocketExplicit = true
		}
	})
	if !adminSocketExplicit {
		cfg.AdminSocketPath = cfg.SocketPath + ".master"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	core := tagcore.New(cfg.RegistryCapacity)
	srv := daemon.NewServerWithCore(cfg, core)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Start(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if *metricsAddr != "" {
		metricsSrv := newMetricsServer(*metricsAddr, core)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "tagfdd: %v\n", err)
	os.Exit(1)
}
