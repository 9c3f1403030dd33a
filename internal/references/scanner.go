package references

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"imagenamer/internal/errors"
	"imagenamer/internal/log"
	"imagenamer/pkg/types"
)

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", ".image_namer", ".obsidian", "node_modules"}

// Scanner locates references to an image in a tree of Markdown documents.
type Scanner struct {
	excludes []glob.Glob
	skipDirs map[string]bool
}

// ScanOption configures a Scanner.
type ScanOption func(*Scanner) error

// WithExclude skips documents and directories whose slash-separated path
// relative to the search root matches one of patterns.
func WithExclude(patterns ...string) ScanOption {
	return func(s *Scanner) error {
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return errors.NewConfigError("invalid exclude pattern", p, errors.InvalidConfig, err)
			}
			s.excludes = append(s.excludes, g)
		}
		return nil
	}
}

// WithSkipDir adds directory names that are never descended into.
func WithSkipDir(names ...string) ScanOption {
	return func(s *Scanner) error {
		for _, n := range names {
			s.skipDirs[n] = true
		}
		return nil
	}
}

// NewScanner creates a Scanner. DefaultSkipDirs are always skipped.
func NewScanner(opts ...ScanOption) (*Scanner, error) {
	s := &Scanner{skipDirs: make(map[string]bool)}
	for _, n := range DefaultSkipDirs {
		s.skipDirs[n] = true
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Scan finds references with default options.
func Scan(imagePath, root string, recursive bool) ([]types.MarkdownReference, error) {
	s, _ := NewScanner()
	return s.Scan(imagePath, root, recursive)
}

func (s *Scanner) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range s.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Scan returns every reference to imagePath in the *.md documents below
// root. Documents are visited in lexical walk order, lines ascending and
// matches by column within a line. With recursive unset only documents
// directly in root are read. Unreadable documents are logged and skipped.
func (s *Scanner) Scan(imagePath, root string, recursive bool) ([]types.MarkdownReference, error) {
	img, err := newImage(imagePath)
	if err != nil {
		return nil, errors.NewFileError("cannot resolve image path", imagePath, errors.InvalidPath, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileError("references root not found", root, errors.FileNotFound, err)
		}
		return nil, errors.NewFileError("cannot access references root", root, errors.FileAccessDenied, err)
	}
	if !info.IsDir() {
		return nil, errors.NewFileError("references root is not a directory", root, errors.InvalidPath, nil)
	}

	var refs []types.MarkdownReference
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.LogWithFields(log.F("path", path)).Warnf("skipping unreadable entry: %v", walkErr)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || s.skipDirs[d.Name()] || s.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".md") || s.excluded(rel) {
			return nil
		}
		if !d.Type().IsRegular() {
			if st, err := os.Stat(path); err != nil || !st.Mode().IsRegular() {
				return nil
			}
		}

		found, err := scanDocument(path, img)
		if err != nil {
			log.LogWithError(err).Warn("skipping unreadable document")
			return nil
		}
		refs = append(refs, found...)
		return nil
	})
	if err != nil {
		return refs, errors.Wrapf(err, "walking %s", root)
	}

	log.LogWithFields(log.F("image", img.name), log.F("root", root), log.F("count", len(refs))).
		Debug("reference scan finished")
	return refs, nil
}

func scanDocument(path string, img image) ([]types.MarkdownReference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileError("cannot read document", path, errors.FileAccessDenied, err)
	}
	if !utf8.Valid(data) {
		return nil, errors.NewFileError("document is not valid UTF-8", path, errors.InvalidPath, nil)
	}
	docDir := filepath.Dir(path)

	var refs []types.MarkdownReference
	for i, line := range strings.Split(string(data), "\n") {
		for _, sp := range scanLine(line) {
			if !matches(sp, img, docDir) {
				continue
			}
			refs = append(refs, types.MarkdownReference{
				FilePath:     path,
				LineNumber:   i + 1,
				Column:       sp.start + 1,
				OriginalText: sp.text,
				ImagePath:    targetOf(sp.capture),
				Type:         sp.kind,
				Capture:      sp.capture,
			})
		}
	}
	return refs, nil
}

func matches(sp span, img image, docDir string) bool {
	switch c := sp.capture.(type) {
	case types.StandardCapture:
		return img.matchesStandard(c.Target, docDir)
	case types.WikiCapture:
		return img.matchesWiki(c.Target)
	}
	return false
}

func targetOf(c types.Capture) string {
	switch c := c.(type) {
	case types.StandardCapture:
		return c.Target
	case types.WikiCapture:
		return c.Target
	}
	return ""
}
