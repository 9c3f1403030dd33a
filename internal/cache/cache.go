// Package cache stores vision model results on disk, keyed by image content.
//
// Layout below the cache root (normally <folder>/.image_namer):
//
//	cache/names/    proposed names
//	cache/analysis/ name assessments
//	cache/unified/  combined analyses
//	runs/           one JSON journal per applied batch
//	version         rubric version the entries were written with
//
// Every key carries the SHA-256 of the image bytes, the provider, the model
// and the rubric version, so a new model or rubric never reads stale
// answers. Entries that cannot be decoded are treated as misses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"imagenamer/internal/errors"
	"imagenamer/internal/log"
	"imagenamer/pkg/types"
)

// RubricVersion is bumped whenever prompts or entry schemas change.
const RubricVersion = 1

// DefaultDirName is the cache root created inside a processed folder.
const DefaultDirName = ".image_namer"

const (
	bucketNames    = "names"
	bucketAnalysis = "analysis"
	bucketUnified  = "unified"
	bucketRefs     = "refs"
)

var buckets = []string{bucketNames, bucketAnalysis, bucketUnified, bucketRefs}

// Key identifies one cached answer.
type Key struct {
	Hash     string
	Filename string
	Provider string
	Model    string
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(s)
}

// String renders the on-disk entry name without the .json suffix.
func (k Key) String() string {
	parts := []string{k.Hash}
	if k.Filename != "" {
		parts = append(parts, sanitize(k.Filename))
	}
	parts = append(parts, sanitize(k.Provider), sanitize(k.Model), "v"+strconv.Itoa(RubricVersion))
	return strings.Join(parts, "__")
}

type entry[T any] struct {
	ImageHash     string `json:"image_hash"`
	Filename      string `json:"filename,omitempty"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	RubricVersion int    `json:"rubric_version"`
	Value         T      `json:"value"`
}

func (e entry[T]) matches(k Key) bool {
	return e.ImageHash == k.Hash && e.Filename == k.Filename && e.Provider == k.Provider &&
		e.Model == k.Model && e.RubricVersion == RubricVersion
}

// Store is a cache rooted at one directory.
type Store struct {
	root   string
	hashes *lru.Cache[string, string]
}

// Open creates the cache layout below root if needed.
func Open(root string) (*Store, error) {
	for _, b := range buckets {
		if err := os.MkdirAll(filepath.Join(root, "cache", b), 0755); err != nil {
			return nil, errors.NewFileError("cannot create cache directory", root, errors.FileOperationFailed, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "runs"), 0755); err != nil {
		return nil, errors.NewFileError("cannot create runs directory", root, errors.FileOperationFailed, err)
	}

	versionFile := filepath.Join(root, "version")
	if _, err := os.Stat(versionFile); os.IsNotExist(err) {
		if err := os.WriteFile(versionFile, []byte(fmt.Sprintf("%d\n", RubricVersion)), 0644); err != nil {
			return nil, errors.NewFileError("cannot write cache version", versionFile, errors.FileOperationFailed, err)
		}
	}

	hashes, err := lru.New[string, string](4096)
	if err != nil {
		return nil, err
	}
	return &Store{root: root, hashes: hashes}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Hash returns the hex SHA-256 of the file at path. Results are memoized
// by path, size and modification time.
func (s *Store) Hash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.NewFileError("cannot stat image", path, errors.FileNotFound, err)
	}
	memo := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if h, ok := s.hashes.Get(memo); ok {
		return h, nil
	}

	h, err := HashFile(path)
	if err != nil {
		return "", err
	}
	s.hashes.Add(memo, h)
	return h, nil
}

// HashFile streams the file at path through SHA-256.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewFileError("cannot open image", path, errors.FileAccessDenied, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.NewFileError("cannot read image", path, errors.FileAccessDenied, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func load[T any](s *Store, bucket string, k Key) (T, bool) {
	var zero T
	path := filepath.Join(s.root, "cache", bucket, k.String()+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, false
	}

	var e entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		log.LogWithError(errors.NewCacheError("corrupt cache entry", k.String(), err)).Debug("cache miss")
		return zero, false
	}
	if !e.matches(k) {
		return zero, false
	}
	return e.Value, true
}

func save[T any](s *Store, bucket string, k Key, v T) error {
	e := entry[T]{
		ImageHash:     k.Hash,
		Filename:      k.Filename,
		Provider:      k.Provider,
		Model:         k.Model,
		RubricVersion: RubricVersion,
		Value:         v,
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return errors.NewCacheError("cannot encode cache entry", k.String(), err)
	}
	path := filepath.Join(s.root, "cache", bucket, k.String()+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.NewFileError("cannot write cache entry", path, errors.FileOperationFailed, err)
	}
	return nil
}

// LoadName returns a cached proposal for the image content.
func (s *Store) LoadName(k Key) (types.ProposedName, bool) {
	k.Filename = ""
	return load[types.ProposedName](s, bucketNames, k)
}

// SaveName stores a proposal.
func (s *Store) SaveName(k Key, name types.ProposedName) error {
	k.Filename = ""
	return save(s, bucketNames, k, name)
}

// LoadAssessment returns a cached verdict for the image content under the
// given filename.
func (s *Store) LoadAssessment(k Key) (types.NameAssessment, bool) {
	return load[types.NameAssessment](s, bucketAnalysis, k)
}

// SaveAssessment stores a verdict.
func (s *Store) SaveAssessment(k Key, a types.NameAssessment) error {
	return save(s, bucketAnalysis, k, a)
}

// LoadAnalysis returns a cached unified analysis.
func (s *Store) LoadAnalysis(k Key) (types.ImageAnalysis, bool) {
	return load[types.ImageAnalysis](s, bucketUnified, k)
}

// SaveAnalysis stores a unified analysis.
func (s *Store) SaveAnalysis(k Key, a types.ImageAnalysis) error {
	return save(s, bucketUnified, k, a)
}

// Clear removes every cached entry. Run journals are kept.
func (s *Store) Clear() (int, error) {
	removed := 0
	for _, b := range buckets {
		dir := filepath.Join(s.root, "cache", b)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, errors.NewFileError("cannot list cache directory", dir, errors.FileAccessDenied, err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return removed, errors.NewFileError("cannot remove cache entry", e.Name(), errors.FileOperationFailed, err)
			}
			removed++
		}
	}
	s.hashes.Purge()
	return removed, nil
}
