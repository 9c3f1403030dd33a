// Package report renders batch results for the terminal.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"imagenamer/pkg/types"
)

// Printer writes styled output to one writer. Colors are dropped
// automatically when the writer is not a terminal.
type Printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
}

// New creates a Printer for w.
func New(w io.Writer) *Printer {
	return &Printer{w: w, renderer: lipgloss.NewRenderer(w)}
}

// Table prints one row per record: source, proposed final name, status
// and size.
func (p *Printer) Table(records []types.RenameRecord) {
	header := p.renderer.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	cell := p.renderer.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		size := ""
		if r.Size > 0 {
			size = humanize.Bytes(uint64(r.Size))
		}
		rows = append(rows, []string{r.SourceName, r.FinalName, string(r.Status), size})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.renderer.NewStyle().Foreground(accent)).
		Headers("Source", "Proposed", "Status", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 2 && row >= 0 && row < len(rows) {
				return cell.Foreground(statusColor(rows[row][2]))
			}
			return cell
		})

	fmt.Fprintln(p.w, t.String())
}

// References prints one row per reference with the document path
// relative to root.
func (p *Printer) References(refs []types.MarkdownReference, root string) {
	header := p.renderer.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	cell := p.renderer.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(refs))
	for _, r := range refs {
		doc := r.FilePath
		if rel, err := filepath.Rel(root, r.FilePath); err == nil {
			doc = rel
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", filepath.ToSlash(doc), r.LineNumber),
			string(r.Type),
			r.OriginalText,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.renderer.NewStyle().Foreground(accent)).
		Headers("Document", "Kind", "Reference").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 1 {
				return cell.Foreground(dimmed)
			}
			return cell
		})

	fmt.Fprintln(p.w, t.String())
}

// Panel prints a bordered box with a title and key/value lines.
func (p *Printer) Panel(title string, lines ...string) {
	titleStyle := p.renderer.NewStyle().Bold(true).Foreground(accent)
	box := p.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)

	body := titleStyle.Render(title) + "\n" + strings.Join(lines, "\n")
	fmt.Fprintln(p.w, box.Render(body))
}

// Line prints plain text.
func (p *Printer) Line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Warn prints text in the warning color.
func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.renderer.NewStyle().Foreground(warn).Render(fmt.Sprintf(format, args...)))
}

// Error prints text in the error color.
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.renderer.NewStyle().Foreground(bad).Render(fmt.Sprintf(format, args...)))
}

// Summary prints the batch counters.
func (p *Printer) Summary(s types.BatchSummary) {
	fmt.Fprintln(p.w, SummaryLine(s))
	if refs := RefsLine(s); refs != "" {
		fmt.Fprintln(p.w, refs)
	}
}

// SummaryLine formats the status counters, e.g.
// "2 renamed, 1 unchanged, 0 collision, 0 error (dry-run)".
func SummaryLine(s types.BatchSummary) string {
	line := fmt.Sprintf("%d renamed, %d unchanged, %d collision, %d error", s.Renamed, s.Unchanged, s.Collision, s.Errors)
	if s.Cached > 0 {
		line += fmt.Sprintf(", %d cached", s.Cached)
	}
	if s.DryRun {
		line += " (dry-run)"
	}
	return line
}

// RefsLine formats the reference counters, or "" when nothing matched.
func RefsLine(s types.BatchSummary) string {
	if s.Replacements == 0 {
		return ""
	}
	verb := "updated"
	if s.DryRun {
		verb = "would be updated"
	}
	return fmt.Sprintf("%s %s %s in %s",
		humanize.Comma(int64(s.Replacements)), plural(s.Replacements, "reference", "references"), verb,
		plural(s.FilesTouched, "1 file", fmt.Sprintf("%d files", s.FilesTouched)))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
