package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/kubewire/internal/k8s"
	"github.com/giantswarm/kubewire/internal/server"
)

// streamFunc consumes one stream until it ends or ctx is cancelled.
type streamFunc func(ctx context.Context) error

// runStreams runs every fn concurrently until all end, one fails, or the
// process is interrupted. An interrupt is a clean exit. With a non-empty
// probeAddr the probe server runs alongside and reports ready once it is
// listening.
func runStreams(ctx context.Context, s *session, probeAddr string, fns []streamFunc) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var probe *server.ProbeServer
	if probeAddr != "" {
		probe = server.NewProbeServer(server.ProbeServerConfig{
			Addr:    probeAddr,
			Version: currentVersion(),
			Readiness: func(ctx context.Context) error {
				return k8s.Ping(ctx, s.client)
			},
			InstrumentationProvider: s.provider,
			Logger:                  s.logger,
		})
		if err := probe.Listen(); err != nil {
			return fmt.Errorf("failed to start probe server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error {
			return fn(gctx)
		})
	}

	if probe == nil {
		return g.Wait()
	}

	probeCtx, stopProbe := context.WithCancel(ctx)
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- probe.Run(probeCtx)
	}()
	probe.Health().SetReady(true)

	err := g.Wait()
	stopProbe()
	if probeErr := <-probeDone; err == nil && probeErr != nil {
		err = fmt.Errorf("probe server failed: %w", probeErr)
	}
	return err
}

// lockedWriter serializes lines written by concurrent streams.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Println(a ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintln(l.w, a...)
	return err
}
