package main

import (
	"fmt"
	"io"

	"facter/internal/config"
	"facter/internal/core/native"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree writing to stdout and stderr
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := newApp(stdout, stderr)

	cmd := &cobra.Command{
		Use:   "facter [flags] [query...]",
		Short: "Collect and display facts about the system",
		Long: `facter gathers facts about the local system and prints them.

Built-in facts are combined with external facts read from fact directories:
YAML, JSON, TOML and key=value text files, and executables whose output is
key=value lines. External facts override built-in facts of the same name.

Queries select individual facts. Dotted queries address into structured
facts, for example os.release.major or networking.interfaces.eth0.ip.

Examples:
  facter                          Print every fact
  facter os.name kernelrelease    Print two facts
  facter --json os                Print the os fact as JSON
  facter --external-dir ./facts.d Read external facts from ./facts.d`,
		Version:      native.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.newStore(nil, args)
			return a.printFacts(cmd.Context(), store, args)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./facter.yaml or ~/.config/facter/config.yaml)")
	flags.BoolVarP(&a.asJSON, "json", "j", false, "output facts as JSON")
	flags.BoolVarP(&a.asYAML, "yaml", "y", false, "output facts as YAML")
	flags.StringSlice("external-dir", nil, "directory to read external facts from (repeatable)")
	flags.StringSlice("custom-dir", nil, "directory to search for custom facts (repeatable)")
	flags.Bool("no-external", false, "disable external facts")
	flags.Duration("timeout", config.DefaultExecTimeout, "timeout for executable external facts")
	flags.Int("concurrency", config.DefaultConcurrency, "number of fact directories read in parallel")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("db", "", "snapshot database path (default is ~/.local/share/facter/facter.db)")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	bindings := map[string]string{
		config.KeyExternalDirs: "external-dir",
		config.KeyCustomDirs:   "custom-dir",
		config.KeyNoExternal:   "no-external",
		config.KeyExecTimeout:  "timeout",
		config.KeyConcurrency:  "concurrency",
		config.KeyLogLevel:     "log-level",
		config.KeyDatabasePath: "db",
	}
	for key, name := range bindings {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newSnapshotCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newVersionCmd(a))

	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the facter version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.stdout, native.Version)
			return err
		},
	}
}
