package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"facter/internal/codec"
	"facter/internal/config"
	"facter/internal/core/native"
	"facter/internal/domain"
	"facter/internal/loader"
	"facter/internal/service"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// app holds state shared by every command of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	asJSON  bool
	asYAML  bool

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *log.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:      viper.New(),
		stdout: stdout,
		stderr: stderr,
	}
}

// setup loads configuration and configures logging
func (a *app) setup() error {
	cfg, path, err := config.LoadWithOptions(config.LoadOptions{
		ConfigFile: a.cfgFile,
		Viper:      a.v,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Level:  cfg.Level(),
		Prefix: "facter",
	})
	if path != "" {
		a.logger.Debug("config loaded", "path", path)
	}
	return nil
}

// newStore builds a fact store from the loaded configuration. Queries, when
// given, restrict population to the facts they can resolve against.
func (a *app) newStore(bus *service.EventBus, queries []string) *service.Store {
	provider := native.New(native.WithLogger(a.logger.WithPrefix("native")))
	ld := loader.New(
		loader.WithConcurrency(a.cfg.Concurrency),
		loader.WithExecTimeout(a.cfg.ExecTimeout.Duration()),
		loader.WithLogger(a.logger.WithPrefix("loader")),
	)

	store := service.NewStore(provider, ld,
		service.WithEventBus(bus),
		service.WithStoreLogger(a.logger.WithPrefix("store")),
	)
	store.SearchExternal(a.cfg.ExternalSearchPath()...)
	store.Search(a.cfg.CustomDirs...)
	if len(queries) > 0 {
		store.Restrict(restriction(queries)...)
	}
	return store
}

// restriction lists the fact names needed to answer queries. A dotted
// query may name a fact directly or address into its first segment.
func restriction(queries []string) []string {
	var names []string
	for _, q := range queries {
		names = append(names, q)
		if head, _, ok := strings.Cut(q, "."); ok {
			names = append(names, head)
		}
	}
	return names
}

func (a *app) exporter() codec.Exporter {
	switch {
	case a.asJSON:
		return codec.NewJSONExporter()
	case a.asYAML:
		return codec.NewYAMLExporter()
	default:
		return codec.NewTextExporter()
	}
}

func (a *app) structured() bool {
	return a.asJSON || a.asYAML
}

// printFacts writes the whole table, or the answers to queries
func (a *app) printFacts(ctx context.Context, store *service.Store, queries []string) error {
	if len(queries) == 0 {
		return a.exporter().Export(store.ToMap(ctx), a.stdout)
	}

	// A single plain query prints the bare value
	if len(queries) == 1 && !a.structured() {
		v, ok := store.Query(ctx, queries[0])
		if !ok {
			_, err := fmt.Fprintln(a.stdout)
			return err
		}
		_, err := fmt.Fprintln(a.stdout, codec.FormatText(v))
		return err
	}

	answers := domain.NewFactSet()
	for _, q := range queries {
		if v, ok := store.Query(ctx, q); ok {
			answers.Set(q, v)
		} else if !a.structured() {
			answers.Set(q, domain.String(""))
		}
	}
	return a.exporter().Export(answers, a.stdout)
}
