package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"facter/internal/codec"
	"facter/internal/config"
	"facter/internal/domain"
	"facter/internal/repository"
	"facter/internal/repository/sqlite"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Store fact snapshots and compare them over time",
	}
	cmd.AddCommand(newSnapshotSaveCmd(a))
	cmd.AddCommand(newSnapshotListCmd(a))
	cmd.AddCommand(newSnapshotShowCmd(a))
	cmd.AddCommand(newSnapshotDiffCmd(a))
	cmd.AddCommand(newSnapshotDeleteCmd(a))
	return cmd
}

// openRepo opens the configured snapshot database
func (a *app) openRepo() (repository.SnapshotRepository, error) {
	path := a.cfg.Database.Path
	if path != ":memory:" {
		if err := config.EnsureConfigDir(path); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	repo, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("snapshot database opened", "path", path)
	return repo, nil
}

// withRepo runs fn with an open repository and closes it afterwards
func (a *app) withRepo(fn func(repository.SnapshotRepository) error) error {
	repo, err := a.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(repo)
}

func newSnapshotSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Collect facts and store them as a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snap := a.newStore(nil, nil).Snapshot(ctx)
			return a.withRepo(func(repo repository.SnapshotRepository) error {
				if err := repo.Save(ctx, snap); err != nil {
					return err
				}
				a.logger.Info("snapshot saved", "id", snap.ID, "facts", snap.Facts.Len())
				_, err := fmt.Fprintln(a.stdout, snap.ID)
				return err
			})
		},
	}
}

func newSnapshotListCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo repository.SnapshotRepository) error {
				infos, err := repo.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if a.asJSON {
					if infos == nil {
						infos = []domain.SnapshotInfo{}
					}
					enc := json.NewEncoder(a.stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(infos)
				}

				tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTAKEN\tHOSTNAME\tFACTS")
				for _, info := range infos {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
						info.ID, info.TakenAt.Local().Format(time.RFC3339), info.Hostname, info.FactCount)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of snapshots to list (0 lists all)")
	return cmd
}

func newSnapshotShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print the facts of a snapshot (default: the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo repository.SnapshotRepository) error {
				snap, err := loadSnapshot(cmd.Context(), repo, args)
				if err != nil {
					return err
				}
				return a.exporter().Export(snap.Facts, a.stdout)
			})
		},
	}
}

func newSnapshotDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [id [id]]",
		Short: "Compare a snapshot with current facts or with another snapshot",
		Long: `Compare facts between two points in time.

With no arguments the latest snapshot is compared with the current facts.
With one ID that snapshot is compared with the current facts. With two IDs
the first snapshot is compared with the second.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepo(func(repo repository.SnapshotRepository) error {
				before, err := loadSnapshot(ctx, repo, args[:min(len(args), 1)])
				if err != nil {
					return err
				}

				var after *domain.FactSet
				if len(args) == 2 {
					snap, err := repo.Get(ctx, args[1])
					if err != nil {
						return fmt.Errorf("snapshot %s: %w", args[1], err)
					}
					after = snap.Facts
				} else {
					after = a.newStore(nil, nil).ToMap(ctx)
				}

				return a.printChanges(domain.Diff(before.Facts, after))
			})
		},
	}
}

func newSnapshotDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(repo repository.SnapshotRepository) error {
				if err := repo.Delete(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("snapshot %s: %w", args[0], err)
				}
				a.logger.Info("snapshot deleted", "id", args[0])
				return nil
			})
		},
	}
}

// loadSnapshot returns the snapshot named by args, or the latest one
func loadSnapshot(ctx context.Context, repo repository.SnapshotRepository, args []string) (*domain.Snapshot, error) {
	if len(args) == 0 {
		snap, err := repo.Latest(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.New("no snapshots stored")
		}
		return snap, err
	}
	snap, err := repo.Get(ctx, args[0])
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", args[0], err)
	}
	return snap, nil
}

// printChanges writes one line per change, or the changes as JSON
func (a *app) printChanges(changes []domain.Change) error {
	if a.asJSON {
		if changes == nil {
			changes = []domain.Change{}
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(changes)
	}

	for _, c := range changes {
		var err error
		switch c.Type {
		case domain.ChangeAdded:
			_, err = fmt.Fprintf(a.stdout, "+ %s => %s\n", c.Name, codec.FormatText(c.After))
		case domain.ChangeRemoved:
			_, err = fmt.Fprintf(a.stdout, "- %s => %s\n", c.Name, codec.FormatText(c.Before))
		case domain.ChangeChanged:
			_, err = fmt.Fprintf(a.stdout, "~ %s => %s -> %s\n", c.Name, codec.FormatText(c.Before), codec.FormatText(c.After))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
