package types

import "time"

// RenameStatus is the lifecycle state of one image in a batch.
type RenameStatus string

const (
	// StatusQueued is the initial state before any decision was made
	StatusQueued RenameStatus = "queued"
	// StatusUnchanged means the file keeps its current name
	StatusUnchanged RenameStatus = "unchanged"
	// StatusReady means the final name was locked by the user
	StatusReady RenameStatus = "ready"
	// StatusRenamed means the proposed name was free on the first try
	StatusRenamed RenameStatus = "renamed"
	// StatusCollision means a numeric suffix was needed
	StatusCollision RenameStatus = "collision"
	// StatusError means name generation failed; the source name is kept
	StatusError RenameStatus = "error"
	// StatusCompleted means the rename was applied on disk
	StatusCompleted RenameStatus = "completed"
)

// RenameRecord holds the plan and outcome for a single image
type RenameRecord struct {
	Path           string       `json:"path"`
	SourceName     string       `json:"source_name"`
	ProposedName   string       `json:"proposed_name,omitempty"`
	FinalName      string       `json:"final_name"`
	Status         RenameStatus `json:"status"`
	Message        string       `json:"message,omitempty"`
	Reasoning      string       `json:"reasoning,omitempty"`
	Cached         bool         `json:"cached"`
	ManuallyEdited bool         `json:"manually_edited"`
	Size           int64        `json:"size,omitempty"`
	Replacements   int          `json:"replacements"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Err            error        `json:"-"`
}

// NeedsRename reports whether applying the record touches the filesystem.
func (r *RenameRecord) NeedsRename() bool {
	return r.Status != StatusError && r.FinalName != "" && r.FinalName != r.SourceName
}

// BatchSummary aggregates the outcome of a batch.
type BatchSummary struct {
	Renamed      int  `json:"renamed"`
	Unchanged    int  `json:"unchanged"`
	Collision    int  `json:"collision"`
	Errors       int  `json:"errors"`
	Cached       int  `json:"cached"`
	FilesTouched int  `json:"files_touched"`
	Replacements int  `json:"replacements"`
	DryRun       bool `json:"dry_run"`
}

// Add counts one record into the summary by its planned status.
func (s *BatchSummary) Add(r *RenameRecord) {
	switch r.Status {
	case StatusUnchanged:
		s.Unchanged++
	case StatusCollision:
		s.Collision++
	case StatusError:
		s.Errors++
	case StatusRenamed, StatusReady:
		s.Renamed++
	}
	if r.Cached {
		s.Cached++
	}
}
