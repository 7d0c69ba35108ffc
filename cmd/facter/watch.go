package main

import (
	"context"
	"errors"
	"fmt"

	"facter/internal/service"
	"facter/internal/watcher"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [query...]",
		Short: "Print facts again whenever an external fact directory changes",
		Long: `Print facts, then watch the external fact directories and print the
facts again after files are added, changed or removed. Changes arriving close
together are coalesced. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), args)
		},
	}
}

func (a *app) watch(ctx context.Context, queries []string) error {
	bus := service.NewEventBus()
	events := make(chan service.Event, 16)
	bus.Subscribe(events)
	defer bus.Unsubscribe(events)

	store := a.newStore(bus, queries)
	if err := a.printFacts(ctx, store, queries); err != nil {
		return err
	}

	// One pending refresh is enough; later changes are picked up by it
	refresh := make(chan []string, 1)
	w := watcher.New(store.SearchExternalPath(), func(paths []string) {
		select {
		case refresh <- paths:
		default:
		}
	}).WithDebounce(a.cfg.Watch.Debounce.Duration()).WithLogger(a.logger.WithPrefix("watcher"))

	errc := make(chan error, 1)
	go func() { errc <- w.Watch(ctx) }()

	for {
		select {
		case paths := <-refresh:
			a.logger.Info("fact sources changed", "files", len(paths))
			store.Reset()
			if _, err := fmt.Fprintln(a.stdout); err != nil {
				return err
			}
			if err := a.printFacts(ctx, store, queries); err != nil {
				return err
			}
		case ev := <-events:
			if p, ok := ev.Payload.(service.PopulatedPayload); ok {
				a.logger.Debug("facts refreshed", "generation", p.Generation, "facts", p.Facts, "failed", p.Failed)
			}
		case err := <-errc:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
	}
}
