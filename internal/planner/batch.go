package planner

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// BatchContext holds the names claimed by pending renames of one batch.
// It is safe for concurrent use.
type BatchContext struct {
	mu              sync.Mutex
	caseInsensitive bool
	planned         map[string]map[string]string // dir → folded name → name
}

// NewBatchContext creates an empty context. With caseInsensitive set,
// names differing only in case are considered equal.
func NewBatchContext(caseInsensitive bool) *BatchContext {
	return &BatchContext{
		caseInsensitive: caseInsensitive,
		planned:         make(map[string]map[string]string),
	}
}

// CaseInsensitive reports the comparison policy of the batch.
func (b *BatchContext) CaseInsensitive() bool {
	return b.caseInsensitive
}

func (b *BatchContext) fold(name string) string {
	if b.caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// Claim records name as taken in dir.
func (b *BatchContext) Claim(dir, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.claimLocked(dir, name)
}

func (b *BatchContext) claimLocked(dir, name string) {
	dir = filepath.Clean(dir)
	names, ok := b.planned[dir]
	if !ok {
		names = make(map[string]string)
		b.planned[dir] = names
	}
	names[b.fold(name)] = name
}

// IsPlanned reports whether name was already claimed in dir.
func (b *BatchContext) IsPlanned(dir, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isPlannedLocked(dir, name)
}

func (b *BatchContext) isPlannedLocked(dir, name string) bool {
	_, ok := b.planned[filepath.Clean(dir)][b.fold(name)]
	return ok
}

// Release drops a claim, e.g. when the user edits a planned name.
func (b *BatchContext) Release(dir, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.planned[filepath.Clean(dir)], b.fold(name))
}

// Planned returns the claimed names of dir in sorted order.
func (b *BatchContext) Planned(dir string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.planned[filepath.Clean(dir)]))
	for _, n := range b.planned[filepath.Clean(dir)] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the total number of claims across directories.
func (b *BatchContext) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, names := range b.planned {
		n += len(names)
	}
	return n
}
