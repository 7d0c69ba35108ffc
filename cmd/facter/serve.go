package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"facter/internal/config"
	"facter/internal/handler"
	"facter/internal/hub"
	"facter/internal/repository"
	"facter/internal/service"
	"facter/internal/watcher"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve facts and snapshots over HTTP",
		Long: `Serve the fact table as a JSON API.

Facts are collected on the first request and kept until reset, either by
POST /api/reset or, with --watch, whenever an external fact directory
changes. Store events are streamed to clients of GET /events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), watch)
		},
	}
	cmd.Flags().String("addr", config.DefaultServeAddr, "HTTP listen address")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reset facts when external fact directories change")
	if err := a.v.BindPFlag(config.KeyServeAddr, cmd.Flags().Lookup("addr")); err != nil {
		panic(fmt.Sprintf("bind flag addr: %v", err))
	}
	return cmd
}

// serveHandler builds the API routes and the event stream
func (a *app) serveHandler(store *service.Store, repo repository.SnapshotRepository, events *hub.Hub) http.Handler {
	mux := http.NewServeMux()
	handler.NewFactHandler(store, repo, a.logger.WithPrefix("http")).Register(mux)
	mux.Handle("GET /events", events)

	return handler.Chain(mux,
		handler.Recover(a.logger),
		handler.Logger(a.logger.WithPrefix("http")),
	)
}

func (a *app) serve(ctx context.Context, watch bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repo, err := a.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	// Store events are forwarded to SSE clients
	bus := service.NewEventBus()
	eventChan := make(chan service.Event, 100)
	bus.Subscribe(eventChan)
	defer bus.Unsubscribe(eventChan)

	sseHub := hub.New(a.logger.WithPrefix("hub"))
	go sseHub.Run(ctx)
	go func() {
		for {
			select {
			case event := <-eventChan:
				sseHub.Broadcast(event)
			case <-ctx.Done():
				return
			}
		}
	}()

	store := a.newStore(bus, nil)

	if watch {
		w := watcher.New(store.SearchExternalPath(), func(paths []string) {
			a.logger.Info("fact sources changed", "files", len(paths))
			store.Reset()
		}).WithDebounce(a.cfg.Watch.Debounce.Duration()).WithLogger(a.logger.WithPrefix("watcher"))
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("watcher stopped", "error", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", a.cfg.Serve.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// No write timeout: event streams stay open
	server := &http.Server{
		Handler:     a.serveHandler(store, repo, sseHub),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", ln.Addr().String())
		errc <- server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	// Stopping the hub ends open event streams so Shutdown can finish
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
