package main

import (
	"os"
	"path/filepath"

	"imagenamer/internal/cache"
	"imagenamer/internal/errors"
	"imagenamer/internal/report"
	"imagenamer/pkg/types"

	"github.com/spf13/cobra"
)

func cacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the analysis cache of a folder",
	}
	cmd.AddCommand(cacheClearCmd(g))
	cmd.AddCommand(cacheRunsCmd(g))
	return cmd
}

// openExistingStore opens the cache of folder without creating one.
func openExistingStore(g *globalFlags, cmd *cobra.Command, folder string) (*cache.Store, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root := filepath.Join(folder, cfg.Cache.Dir)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewFileError("cannot access cache", root, errors.FileAccessDenied, err)
	}
	return cache.Open(root)
}

func cacheClearCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [dir]",
		Short: "Remove cached names and analyses (run journals are kept)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := "."
			if len(args) == 1 {
				folder = args[0]
			}
			p := report.New(cmd.OutOrStdout())

			store, err := openExistingStore(g, cmd, folder)
			if err != nil {
				return err
			}
			if store == nil {
				p.Line("No cache in %s", folder)
				return nil
			}
			n, err := store.Clear()
			if err != nil {
				return err
			}
			p.Line("Removed %d cache entries from %s", n, store.Root())
			return nil
		},
	}
}

func cacheRunsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [dir]",
		Short: "List applied batches recorded in the run journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := "."
			if len(args) == 1 {
				folder = args[0]
			}
			p := report.New(cmd.OutOrStdout())

			store, err := openExistingStore(g, cmd, folder)
			if err != nil {
				return err
			}
			if store == nil {
				p.Line("No cache in %s", folder)
				return nil
			}
			runs, err := store.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				p.Line("No runs recorded")
				return nil
			}
			for _, run := range runs {
				p.Line("%s  %s  %s/%s  %s", run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Provider, run.Model, report.SummaryLine(run.Summary))
				renamed := make([]types.RenameRecord, 0, len(run.Records))
				for _, rec := range run.Records {
					if rec.FinalName != rec.SourceName {
						renamed = append(renamed, rec)
					}
				}
				if len(renamed) > 0 {
					p.Table(renamed)
				}
			}
			return nil
		},
	}
}
