package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"imagenamer/pkg/types"
)

// DirLister lists the entry names of a directory.
type DirLister interface {
	ListDir(dir string) ([]string, error)
}

// OSDirLister reads directories from the local filesystem.
type OSDirLister struct{}

// ListDir returns the names of the entries in dir.
func (OSDirLister) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Request describes one image to plan.
type Request struct {
	Dir        string
	SourceName string
	Proposed   types.ProposedName
}

// Decision is the planner's answer for a Request.
type Decision struct {
	FinalName string
	Status    types.RenameStatus
}

// Planner resolves proposed names to final, collision-free names.
type Planner struct {
	lister DirLister
}

// New creates a planner. A nil lister reads the local filesystem.
func New(lister DirLister) *Planner {
	if lister == nil {
		lister = OSDirLister{}
	}
	return &Planner{lister: lister}
}

// Plan decides the final name for req and claims it in batch. It never
// fails: an unreadable directory counts as empty, and an empty proposed stem
// keeps the source name with StatusError.
func (p *Planner) Plan(req Request, batch *BatchContext) Decision {
	sourceExt := filepath.Ext(req.SourceName)
	currentStem := strings.TrimSuffix(req.SourceName, sourceExt)
	stem := SanitizeStem(req.Proposed.Stem)

	if stem == currentStem || (req.Proposed.Stem == currentStem && currentStem != "") {
		batch.Claim(req.Dir, req.SourceName)
		return Decision{FinalName: req.SourceName, Status: types.StatusUnchanged}
	}
	if stem == "" {
		return Decision{FinalName: req.SourceName, Status: types.StatusError}
	}

	ext := NormalizeExtension(req.Proposed.Extension, sourceExt)
	onDisk := p.existing(req.Dir, batch)
	source := batch.fold(req.SourceName)

	taken := func(name string) bool {
		folded := batch.fold(name)
		if batch.isPlannedLocked(req.Dir, name) {
			return true
		}
		// The source itself only blocks when names are compared exactly;
		// a case-only rename on a folding filesystem targets the same entry.
		_, exists := onDisk[folded]
		return exists && folded != source
	}

	batch.mu.Lock()
	defer batch.mu.Unlock()

	candidate := stem + ext
	if !taken(candidate) {
		batch.claimLocked(req.Dir, candidate)
		return Decision{FinalName: candidate, Status: types.StatusRenamed}
	}

	for n := 2; ; n++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		if !taken(candidate) {
			batch.claimLocked(req.Dir, candidate)
			return Decision{FinalName: candidate, Status: types.StatusCollision}
		}
	}
}

// Lock marks a user-chosen name as final. The name still goes through
// collision resolution, but a free name is reported as StatusReady.
func (p *Planner) Lock(req Request, batch *BatchContext) Decision {
	d := p.Plan(req, batch)
	if d.Status == types.StatusRenamed {
		d.Status = types.StatusReady
	}
	return d
}

func (p *Planner) existing(dir string, batch *BatchContext) map[string]struct{} {
	names, err := p.lister.ListDir(dir)
	if err != nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[batch.fold(n)] = struct{}{}
	}
	return set
}
