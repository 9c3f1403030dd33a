package main

import (
	"os"
	"path/filepath"

	"imagenamer/internal/references"
	"imagenamer/internal/report"
	"imagenamer/pkg/types"

	"github.com/spf13/cobra"
)

func refsCmd(g *globalFlags) *cobra.Command {
	var (
		root      string
		recursive bool
		to        string
		apply     bool
	)

	cmd := &cobra.Command{
		Use:   "refs <image>",
		Short: "List Markdown references to an image",
		Long: `List every Markdown image, link and wiki reference to an image below a
root directory. With --to the references are pointed at a new filename;
nothing is written without --apply. The image itself is never renamed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if root == "" {
				if root, err = os.Getwd(); err != nil {
					return err
				}
			}

			scanner, err := newScanner(cfg)
			if err != nil {
				return err
			}
			refs, err := scanner.Scan(args[0], root, recursive)
			if err != nil {
				return err
			}

			p := report.New(cmd.OutOrStdout())
			if len(refs) == 0 {
				p.Warn("No references to %s found below %s", filepath.Base(args[0]), root)
				return nil
			}
			p.References(refs, root)

			if to == "" {
				return nil
			}
			summary := types.BatchSummary{DryRun: !apply}
			summary.Replacements = len(refs)
			summary.FilesTouched = countFiles(refs)
			if apply {
				updates, err := references.Rewrite(refs, filepath.Base(args[0]), to)
				summary.Replacements, summary.FilesTouched = 0, 0
				for _, u := range updates {
					if u.ReplacementCount > 0 {
						summary.Replacements += u.ReplacementCount
						summary.FilesTouched++
					}
				}
				p.Line("%s", report.RefsLine(summary))
				return err
			}
			p.Line("%s", report.RefsLine(summary))
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "directory searched for Markdown documents (default: current directory)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "search subdirectories of the root")
	cmd.Flags().StringVar(&to, "to", "", "new filename to point the references at")
	cmd.Flags().BoolVar(&apply, "apply", false, "write the rewritten documents")
	return cmd
}

func countFiles(refs []types.MarkdownReference) int {
	seen := make(map[string]struct{})
	for _, r := range refs {
		seen[r.FilePath] = struct{}{}
	}
	return len(seen)
}
