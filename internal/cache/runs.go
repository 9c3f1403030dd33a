package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"imagenamer/internal/errors"
	"imagenamer/pkg/types"
)

// Run is the journal of one applied batch.
type Run struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Provider   string               `json:"provider"`
	Model      string               `json:"model"`
	DryRun     bool                 `json:"dry_run"`
	Records    []types.RenameRecord `json:"records"`
	Summary    types.BatchSummary   `json:"summary"`
}

// RecordRun writes run to runs/<id>.json, assigning an id when empty.
func (s *Store) RecordRun(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding run journal")
	}
	path := filepath.Join(s.root, "runs", run.ID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", errors.NewFileError("cannot write run journal", path, errors.FileOperationFailed, err)
	}
	return run.ID, nil
}

// Runs returns the recorded journals, oldest first.
func (s *Store) Runs() ([]Run, error) {
	dir := filepath.Join(s.root, "runs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewFileError("cannot list runs", dir, errors.FileAccessDenied, err)
	}

	var runs []Run
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var r Run
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs, nil
}
