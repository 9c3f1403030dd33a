package main

import (
	"os"
	"path/filepath"

	"imagenamer/internal/batch"
	"imagenamer/internal/config"
	"imagenamer/internal/discover"
	"imagenamer/internal/errors"
	"imagenamer/internal/report"
	"imagenamer/pkg/types"

	"github.com/spf13/cobra"
)

// renameFlags are shared by the file and folder commands.
type renameFlags struct {
	apply      bool
	dryRun     bool
	updateRefs bool
	refsRoot   string
}

func (f *renameFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.apply, "apply", false, "rename files on disk")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "only show the plan (default unless --apply or dry_run: false)")
	cmd.Flags().BoolVar(&f.updateRefs, "update-refs", false, "rewrite Markdown references to renamed images")
	cmd.Flags().StringVar(&f.refsRoot, "refs-root", "", "directory searched for Markdown documents (default: current directory)")
	cmd.MarkFlagsMutuallyExclusive("apply", "dry-run")
}

// resolve applies the flags over cfg and reports whether this is a dry run.
func (f *renameFlags) resolve(cmd *cobra.Command, cfg *config.Config) (bool, error) {
	dryRun := cfg.Settings.DryRun
	if cmd.Flags().Changed("apply") {
		dryRun = !f.apply
	}
	if cmd.Flags().Changed("dry-run") {
		dryRun = f.dryRun
	}

	if cmd.Flags().Changed("update-refs") {
		cfg.Settings.UpdateRefs = f.updateRefs
	}
	if f.refsRoot != "" {
		cfg.Settings.RefsRoot = f.refsRoot
	}
	if cfg.Settings.UpdateRefs && cfg.Settings.RefsRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return dryRun, errors.Wrap(err, "cannot determine refs root")
		}
		cfg.Settings.RefsRoot = wd
	}
	if cfg.Settings.RefsRoot != "" {
		root, err := filepath.Abs(cfg.Settings.RefsRoot)
		if err != nil {
			return dryRun, errors.NewFileError("invalid refs root", cfg.Settings.RefsRoot, errors.InvalidPath, err)
		}
		cfg.Settings.RefsRoot = root
	}
	return dryRun, nil
}

func generateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <image>",
		Short: "Propose a name for an image without renaming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			img, err := discover.File(args[0], cfg.Files.Extensions)
			if err != nil {
				return err
			}
			vision, err := openVision(cfg)
			if err != nil {
				return err
			}

			name, err := vision.ProposeName(cmd.Context(), img.Path)
			if err != nil {
				return err
			}

			report.New(cmd.OutOrStdout()).Panel("imagenamer: generate",
				"Proposed: "+name.Filename(),
				"Source:   "+img.Name(),
				providerLine(cfg, true),
			)
			return nil
		},
	}
	return cmd
}

func fileCmd(g *globalFlags) *cobra.Command {
	var (
		rf   renameFlags
		name string
	)

	cmd := &cobra.Command{
		Use:   "file <image>",
		Short: "Name one image after its content",
		Long: `Ask the vision model for a descriptive name and rename the image.
Without --apply the plan is only shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			img, err := discover.File(args[0], cfg.Files.Extensions)
			if err != nil {
				return err
			}
			dryRun, err := rf.resolve(cmd, cfg)
			if err != nil {
				return err
			}
			vision, err := openVision(cfg)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, filepath.Dir(img.Path))
			if err != nil {
				return err
			}

			runner, err := openRunner(cfg, vision, store, dryRun)
			if err != nil {
				return err
			}

			res, err := runner.Run(cmd.Context(), []batch.Item{{Path: img.Path, Name: name, Size: img.Size}})
			p := report.New(cmd.OutOrStdout())
			if len(res.Records) > 0 {
				printFileResult(p, cfg, res.Records[0], dryRun)
			}
			if cfg.Settings.UpdateRefs {
				p.Line("Ref update requested for %s at root %s", img.Name(), cfg.Settings.RefsRoot)
			}
			p.Summary(res.Summary)
			if err != nil {
				return err
			}
			if len(res.Records) > 0 && res.Records[0].Status == types.StatusError {
				if rec := res.Records[0]; rec.Err != nil {
					return rec.Err
				}
				return errors.New(res.Records[0].Message)
			}
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "use this name instead of asking the model")
	return cmd
}

func printFileResult(p *report.Printer, cfg *config.Config, rec types.RenameRecord, dryRun bool) {
	lines := []string{
		"Proposed: " + rec.FinalName,
		"Source:   " + rec.SourceName,
		"Status:   " + string(rec.Status),
		providerLine(cfg, dryRun),
	}
	if rec.Reasoning != "" {
		lines = append(lines, "Reason:   "+rec.Reasoning)
	}
	if rec.Message != "" {
		lines = append(lines, "Note:     "+rec.Message)
	}
	p.Panel("imagenamer: file", lines...)
}
