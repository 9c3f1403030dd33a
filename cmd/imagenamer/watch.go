package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"imagenamer/internal/report"
	"imagenamer/internal/watch"
	"imagenamer/pkg/types"

	"github.com/spf13/cobra"
)

func watchCmd(g *globalFlags) *cobra.Command {
	var (
		rf        renameFlags
		recursive bool
		settle    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Rename images as they appear in a folder",
		Long: `Watch a folder and name new images once they have been fully written.
Runs until interrupted. Without --apply the proposed names are only printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Settings.Recursive = recursive
			}
			dryRun, err := rf.resolve(cmd, cfg)
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			vision, err := openVision(cfg)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, dir)
			if err != nil {
				return err
			}

			pid, err := watch.AcquirePIDFile(filepath.Join(dir, cfg.Cache.Dir))
			if err != nil {
				return err
			}
			defer pid.Release()

			runner, err := openRunner(cfg, vision, store, dryRun)
			if err != nil {
				return err
			}
			filter := func(path string) bool { return cfg.IsSupported(filepath.Ext(path)) }
			daemon, err := watch.NewDaemon(runner, filter, watch.WithSettle(settle))
			if err != nil {
				return err
			}
			if err := daemon.AddTree(dir, cfg.Settings.Recursive); err != nil {
				return err
			}

			p := report.New(cmd.OutOrStdout())
			daemon.SetCallback(func(rec types.RenameRecord, err error) {
				switch {
				case err != nil:
					p.Error("%s: %v", rec.SourceName, err)
				case rec.Status == types.StatusError:
					p.Error("%s: %s", rec.SourceName, rec.Message)
				case rec.FinalName == rec.SourceName:
					p.Line("%s unchanged", rec.SourceName)
				default:
					p.Line("%s -> %s (%s)", rec.SourceName, rec.FinalName, rec.Status)
				}
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p.Line("%s", providerLine(cfg, dryRun))
			p.Line("Watching %d directories below %s, press Ctrl+C to stop", len(daemon.Status().WatchDirectories), dir)
			if err := daemon.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			daemon.Stop()

			status := daemon.Status()
			p.Line("Processed %d images, renamed %d", status.FilesProcessed, status.FilesRenamed)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include subdirectories")
	cmd.Flags().DurationVar(&settle, "settle", watch.DefaultSettle, "quiet period before a new file is processed")
	return cmd
}
