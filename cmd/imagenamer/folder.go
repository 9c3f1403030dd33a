package main

import (
	"imagenamer/internal/batch"
	"imagenamer/internal/discover"
	"imagenamer/internal/report"

	"github.com/spf13/cobra"
)

func folderCmd(g *globalFlags) *cobra.Command {
	var (
		rf        renameFlags
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   "folder <dir>",
		Short: "Name every image in a folder",
		Long: `Propose names for all supported images in a folder. Names are kept unique
within the batch and against files already on disk.`,
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

			p := report.New(cmd.OutOrStdout())
			opts := discover.OptionsFromConfig(cfg)
			images, err := discover.Discover(args[0], opts)
			if err != nil {
				return err
			}
			if len(images) == 0 {
				p.Warn("No supported image files found in %s", args[0])
				return nil
			}

			vision, err := openVision(cfg)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, args[0])
			if err != nil {
				return err
			}

			runner, err := openRunner(cfg, vision, store, dryRun)
			if err != nil {
				return err
			}

			p.Line("%s", providerLine(cfg, dryRun))
			res, err := runner.Run(cmd.Context(), batch.ItemsFrom(images))
			p.Table(res.Records)
			p.Summary(res.Summary)
			if res.RunID != "" {
				p.Line("Run journal: %s", res.RunID)
			}
			return err
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include subdirectories")
	return cmd
}
