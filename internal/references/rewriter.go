package references

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"imagenamer/internal/errors"
	"imagenamer/internal/log"
	"imagenamer/pkg/types"
)

// Replacement returns the text that should replace ref after oldName was
// renamed to newName. A reference that does not name oldName comes back
// unchanged. References built without a capture are parsed from their
// original text first.
func Replacement(ref types.MarkdownReference, oldName, newName string) (string, error) {
	c := ref.Capture
	if c == nil {
		parsed, err := ParseReference(ref.Type, ref.OriginalText)
		if err != nil {
			return ref.OriginalText, errors.NewReferenceError("malformed reference", ref.FilePath, ref.LineNumber,
				errors.MalformedReference, err)
		}
		c = parsed
	}

	switch c := c.(type) {
	case types.StandardCapture:
		c.Target = replaceSegment(c.Target, oldName, newName)
		if !c.Angle && strings.ContainsAny(c.Target, " \t") {
			// A bare destination ends at the first space.
			c.Angle = true
		}
		return renderOrOriginal(ref, c)
	case types.WikiCapture:
		c.Target = replaceWikiTarget(c.Target, oldName, newName)
		return renderOrOriginal(ref, c)
	}
	return ref.OriginalText, errors.NewReferenceError("unsupported capture", ref.FilePath, ref.LineNumber,
		errors.MalformedReference, nil)
}

func renderOrOriginal(ref types.MarkdownReference, c types.Capture) (string, error) {
	out, err := Render(ref.Type, c)
	if err != nil {
		return ref.OriginalText, errors.NewReferenceError("malformed reference", ref.FilePath, ref.LineNumber,
			errors.MalformedReference, err)
	}
	return out, nil
}

// replaceSegment swaps the final path segment of target when it names
// oldName, keeping the directory prefix. A percent-encoded segment gets an
// encoded new name.
func replaceSegment(target, oldName, newName string) string {
	seg, at := lastSegment(target)
	if !sameName(seg, oldName) {
		return target
	}
	replacement := newName
	if decoded, err := url.PathUnescape(seg); err == nil && decoded != seg {
		replacement = url.PathEscape(newName)
	}
	return target[:at] + replacement
}

func replaceWikiTarget(target, oldName, newName string) string {
	oldStem := strings.TrimSuffix(oldName, filepath.Ext(oldName))
	newStem := strings.TrimSuffix(newName, filepath.Ext(newName))
	switch {
	case sameName(target, oldName):
		return newName
	case sameName(target, oldStem):
		return newStem
	}
	return target
}

// Rewrite applies the rename oldName → newName to every reference and
// returns one update per document that changed, in first-seen order.
// Each reference replaces the first remaining occurrence of its original
// text, so stale references are no-ops. Documents are written only when
// their content changed, keeping their permissions. A reference that
// cannot be rewritten is logged and left alone; all such failures are
// joined into the returned error.
func Rewrite(refs []types.MarkdownReference, oldName, newName string) ([]types.ReferenceUpdate, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	var order []string
	byFile := make(map[string][]types.MarkdownReference)
	for _, ref := range refs {
		if _, seen := byFile[ref.FilePath]; !seen {
			order = append(order, ref.FilePath)
		}
		byFile[ref.FilePath] = append(byFile[ref.FilePath], ref)
	}

	var updates []types.ReferenceUpdate
	var errs []error
	for _, path := range order {
		count, fileErrs := rewriteFile(path, byFile[path], oldName, newName)
		errs = append(errs, fileErrs...)
		if count > 0 {
			updates = append(updates, types.ReferenceUpdate{FilePath: path, ReplacementCount: count})
		}
	}
	return updates, errors.Join(errs...)
}

func rewriteFile(path string, refs []types.MarkdownReference, oldName, newName string) (int, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, []error{errors.NewFileError("cannot stat document", path, errors.FileNotFound, err)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, []error{errors.NewFileError("cannot read document", path, errors.FileAccessDenied, err)}
	}

	sorted := make([]types.MarkdownReference, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].LineNumber != sorted[j].LineNumber {
			return sorted[i].LineNumber < sorted[j].LineNumber
		}
		return sorted[i].Column < sorted[j].Column
	})

	original := string(data)
	content := original
	count := 0
	var errs []error
	for _, ref := range sorted {
		repl, err := Replacement(ref, oldName, newName)
		if err != nil {
			log.LogWithError(err).Warn("leaving reference unchanged")
			errs = append(errs, err)
			continue
		}
		if repl == ref.OriginalText || !strings.Contains(content, ref.OriginalText) {
			continue
		}
		content = strings.Replace(content, ref.OriginalText, repl, 1)
		count++
	}

	if content == original {
		return count, errs
	}
	if err := writeFilePreservePerm(path, []byte(content), info.Mode().Perm()); err != nil {
		return 0, append(errs, errors.NewFileError("cannot write document", path, errors.FileOperationFailed, err))
	}
	log.LogWithFields(log.F("document", path), log.F("replacements", count)).Debug("references rewritten")
	return count, errs
}

// writeFilePreservePerm replaces path through a temporary sibling so a
// failed write never leaves a truncated document behind.
func writeFilePreservePerm(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
