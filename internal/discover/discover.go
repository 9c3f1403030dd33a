// Package discover finds the image files a batch should process.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"

	"imagenamer/internal/config"
	"imagenamer/internal/errors"
	"imagenamer/internal/log"
	"imagenamer/pkg/types"
)

// Options controls a discovery walk.
type Options struct {
	// Extensions accepted, lowercase with the leading dot
	Extensions []string
	// Exclude holds glob patterns matched against slash-separated paths
	// relative to the root
	Exclude []string
	// Recursive descends into subdirectories
	Recursive bool
	// SkipDirs are directory names never entered
	SkipDirs []string
	// SniffContent drops files whose bytes are not an image
	SniffContent bool
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Extensions:   cfg.Files.Extensions,
		Exclude:      cfg.Files.Exclude,
		Recursive:    cfg.Settings.Recursive,
		SkipDirs:     []string{cfg.Cache.Dir},
		SniffContent: true,
	}
}

type finder struct {
	opts     Options
	exts     map[string]bool
	excludes []glob.Glob
}

func newFinder(opts Options) (*finder, error) {
	f := &finder{opts: opts, exts: make(map[string]bool, len(opts.Extensions))}
	for _, ext := range opts.Extensions {
		f.exts[strings.ToLower(ext)] = true
	}
	for _, p := range opts.Exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.NewConfigError("invalid exclude pattern", p, errors.InvalidConfig, err)
		}
		f.excludes = append(f.excludes, g)
	}
	return f, nil
}

func (f *finder) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range f.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (f *finder) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, s := range f.opts.SkipDirs {
		if name == s {
			return true
		}
	}
	return false
}

// Discover walks root, collects supported images and returns them sorted
// by path for deterministic processing order.
func Discover(root string, opts Options) ([]types.ImageFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewFileError("cannot access folder", root, errors.FileNotFound, err)
	}
	if !info.IsDir() {
		return nil, errors.NewFileError("not a directory", root, errors.InvalidPath, nil)
	}

	f, err := newFinder(opts)
	if err != nil {
		return nil, err
	}

	var files []types.ImageFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.LogWithFields(log.F("path", path), log.F("error", err.Error())).Warn("skipping unreadable entry")
			return nil
		}
		rel, _ := filepath.Rel(root, path)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !f.opts.Recursive || f.skipDir(d.Name()) || f.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !f.exts[strings.ToLower(filepath.Ext(path))] || f.excluded(rel) {
			return nil
		}

		img, ok := f.inspect(path, d)
		if ok {
			files = append(files, img)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewFileError("error walking folder", root, errors.FileAccessDenied, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (f *finder) inspect(path string, d fs.DirEntry) (types.ImageFile, bool) {
	info, err := d.Info()
	if err != nil {
		log.LogWithFields(log.F("path", path), log.F("error", err.Error())).Warn("skipping unreadable file")
		return types.ImageFile{}, false
	}
	img := types.ImageFile{Path: path, Size: info.Size()}

	if f.opts.SniffContent {
		mime, err := mimetype.DetectFile(path)
		if err != nil {
			log.LogWithFields(log.F("path", path), log.F("error", err.Error())).Warn("skipping unreadable file")
			return types.ImageFile{}, false
		}
		if !strings.HasPrefix(mime.String(), "image/") {
			log.LogWithFields(log.F("path", path), log.F("type", mime.String())).Warn("skipping file that is not an image")
			return types.ImageFile{}, false
		}
		img.ContentType = mime.String()
	}
	return img, true
}

// File validates a single image path named on the command line.
func File(path string, extensions []string) (types.ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.ImageFile{}, errors.NewFileError("file not found", path, errors.FileNotFound, err)
		}
		return types.ImageFile{}, errors.NewFileError("cannot access file", path, errors.FileAccessDenied, err)
	}
	if info.IsDir() {
		return types.ImageFile{}, errors.NewFileError("expected a file, got a directory", path, errors.InvalidPath, nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, e := range extensions {
		if e == ext {
			supported = true
			break
		}
	}
	if !supported {
		sorted := append([]string(nil), extensions...)
		sort.Strings(sorted)
		return types.ImageFile{}, errors.NewFileError(
			fmt.Sprintf("Unsupported file type '%s'. Supported: %v", ext, sorted),
			path, errors.UnsupportedFileType, nil)
	}

	img := types.ImageFile{Path: path, Size: info.Size()}
	if mime, err := mimetype.DetectFile(path); err == nil {
		img.ContentType = mime.String()
	}
	return img, nil
}
