// Package batch runs a rename batch: every image is named by a vision
// model, resolved by the planner against the disk and the other renames of
// the batch, and optionally applied together with its Markdown references.
//
// Items run one at a time. Cancellation is polled between items, never in
// the middle of one, so an applied item always has its references updated.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imagenamer/internal/cache"
	"imagenamer/internal/errors"
	"imagenamer/internal/log"
	"imagenamer/internal/planner"
	"imagenamer/internal/provider"
	"imagenamer/internal/references"
	"imagenamer/pkg/types"
)

// Options controls a batch.
type Options struct {
	DryRun          bool
	UseCache        bool
	Unified         bool
	CaseInsensitive bool

	// UpdateRefs rewrites Markdown references below RefsRoot after each
	// rename. RefsRecursive scans subdirectories of RefsRoot.
	UpdateRefs    bool
	RefsRoot      string
	RefsRecursive bool

	// OnPlanned is called after each item is planned
	OnPlanned func(rec types.RenameRecord)
	// OnApplied is called after each item is applied
	OnApplied func(rec types.RenameRecord)
}

// Item is one image to process. Name, when set, is a user-chosen stem or
// filename that replaces the model's proposal.
type Item struct {
	Path string
	Name string
	Size int64
}

// ItemsFrom turns discovered images into batch items.
func ItemsFrom(files []types.ImageFile) []Item {
	items := make([]Item, len(files))
	for i, f := range files {
		items[i] = Item{Path: f.Path, Size: f.Size}
	}
	return items
}

// Result is the outcome of Run.
type Result struct {
	Records []types.RenameRecord
	Summary types.BatchSummary
	RunID   string
}

// Runner executes batches with one vision client.
type Runner struct {
	vision  provider.Vision
	planner *planner.Planner
	store   *cache.Store
	scanner *references.Scanner
	opts    Options
	now     func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithStore enables the disk cache and the run journal.
func WithStore(s *cache.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithScanner replaces the default reference scanner.
func WithScanner(s *references.Scanner) Option {
	return func(r *Runner) { r.scanner = s }
}

// WithPlanner replaces the planner, mainly to inject a DirLister.
func WithPlanner(p *planner.Planner) Option {
	return func(r *Runner) { r.planner = p }
}

// New creates a Runner.
func New(vision provider.Vision, opts Options, options ...Option) (*Runner, error) {
	if vision == nil {
		return nil, errors.New("batch: a vision client is required")
	}
	r := &Runner{
		vision:  vision,
		planner: planner.New(nil),
		opts:    opts,
		now:     time.Now,
	}
	for _, o := range options {
		o(r)
	}
	if r.scanner == nil {
		s, err := references.NewScanner()
		if err != nil {
			return nil, err
		}
		r.scanner = s
	}
	if r.opts.UpdateRefs && r.opts.RefsRoot == "" {
		return nil, errors.NewConfigError("a refs root is required to update references", "refs_root", errors.InvalidConfig, nil)
	}
	return r, nil
}

// Run plans every item, applies the plan unless DryRun is set and, when a
// store is configured, journals applied batches. On cancellation the
// records processed so far are returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, items []Item) (Result, error) {
	started := r.now()
	res := Result{Summary: types.BatchSummary{DryRun: r.opts.DryRun}}

	records, err := r.Plan(ctx, items)
	res.Records = records
	if err != nil {
		for i := range records {
			res.Summary.Add(&records[i])
		}
		return res, err
	}

	if r.opts.DryRun {
		for i := range records {
			res.Summary.Add(&records[i])
		}
		if r.opts.UpdateRefs {
			r.previewRefs(records, &res.Summary)
		}
		return res, nil
	}

	err = r.Apply(ctx, records, &res.Summary)
	if r.store != nil && len(records) > 0 {
		id, jerr := r.store.RecordRun(cache.Run{
			StartedAt:  started,
			FinishedAt: r.now(),
			Provider:   r.vision.Provider(),
			Model:      r.vision.Model(),
			DryRun:     false,
			Records:    records,
			Summary:    res.Summary,
		})
		if jerr != nil {
			log.LogWithError(jerr).Warn("could not write run journal")
		}
		res.RunID = id
	}
	return res, err
}

// Plan decides the final name of every item without touching the disk.
func (r *Runner) Plan(ctx context.Context, items []Item) ([]types.RenameRecord, error) {
	bctx := planner.NewBatchContext(r.opts.CaseInsensitive)
	records := make([]types.RenameRecord, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec := r.planItem(ctx, item, bctx)
		records = append(records, rec)
		if r.opts.OnPlanned != nil {
			r.opts.OnPlanned(rec)
		}
	}
	return records, nil
}

func (r *Runner) planItem(ctx context.Context, item Item, bctx *planner.BatchContext) types.RenameRecord {
	src := filepath.Base(item.Path)
	rec := types.RenameRecord{
		Path:       item.Path,
		SourceName: src,
		FinalName:  src,
		Status:     types.StatusQueued,
		Size:       item.Size,
	}
	req := planner.Request{Dir: filepath.Dir(item.Path), SourceName: src}
	logger := log.LogWithFields(log.F("path", item.Path))

	if item.Name != "" {
		req.Proposed = manualName(item.Name)
		d := r.planner.Lock(req, bctx)
		rec.ProposedName = req.Proposed.Filename()
		rec.ManuallyEdited = true
		return r.finish(rec, d)
	}

	proposed, suitable, reasoning, cached, err := r.propose(ctx, item.Path, src)
	rec.Cached = cached
	rec.Reasoning = reasoning
	if err != nil {
		logger.WithError(err).Error("name generation failed")
		rec.Status = types.StatusError
		rec.Message = err.Error()
		rec.Err = err
		rec.UpdatedAt = r.now()
		return rec
	}

	if suitable {
		ext := filepath.Ext(src)
		proposed = types.ProposedName{Stem: strings.TrimSuffix(src, ext), Extension: ext}
	}
	req.Proposed = proposed
	rec.ProposedName = proposed.Filename()
	d := r.planner.Plan(req, bctx)
	logger.With(log.F("proposed", rec.ProposedName), log.F("final", d.FinalName), log.F("status", string(d.Status))).Debug("planned")
	return r.finish(rec, d)
}

func (r *Runner) finish(rec types.RenameRecord, d planner.Decision) types.RenameRecord {
	rec.FinalName = d.FinalName
	rec.Status = d.Status
	if d.Status == types.StatusError {
		rec.FinalName = rec.SourceName
		rec.Message = "proposed name is empty after sanitizing"
		rec.Err = errors.NewFileError(rec.Message, rec.Path, errors.InvalidPath, nil)
	}
	rec.UpdatedAt = r.now()
	return rec
}

// manualName splits a user-supplied name. Anything after the last dot
// counts as an extension only when it looks like one; otherwise the planner
// keeps the source extension.
func manualName(name string) types.ProposedName {
	name = strings.TrimSpace(name)
	ext := filepath.Ext(name)
	if !looksLikeExt(ext) {
		return types.ProposedName{Stem: name}
	}
	return types.ProposedName{Stem: strings.TrimSuffix(name, ext), Extension: ext}
}

func looksLikeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, c := range ext[1:] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// propose asks the model, through the cache, whether the current name can
// stay and what the image should be called otherwise.
func (r *Runner) propose(ctx context.Context, path, src string) (types.ProposedName, bool, string, bool, error) {
	key, useCache := r.cacheKey(path, src)

	if r.opts.Unified {
		var analysis types.ImageAnalysis
		cached := false
		if useCache {
			analysis, cached = r.store.LoadAnalysis(key)
		}
		if !cached {
			var err error
			analysis, err = r.vision.Analyze(ctx, path, src)
			if err != nil {
				return types.ProposedName{}, false, "", false, err
			}
			if useCache {
				r.save(r.store.SaveAnalysis(key, analysis))
			}
		}
		return analysis.ProposedName, analysis.CurrentNameSuitable, analysis.Reasoning, cached, nil
	}

	var verdict types.NameAssessment
	cached := false
	if useCache {
		verdict, cached = r.store.LoadAssessment(key)
	}
	if !cached {
		var err error
		verdict, err = r.vision.AssessName(ctx, path, src)
		if err != nil {
			return types.ProposedName{}, false, "", false, err
		}
		if useCache {
			r.save(r.store.SaveAssessment(key, verdict))
		}
	}
	if verdict.Suitable {
		return types.ProposedName{}, true, "", cached, nil
	}

	var name types.ProposedName
	nameCached := false
	if useCache {
		name, nameCached = r.store.LoadName(key)
	}
	if !nameCached {
		var err error
		name, err = r.vision.ProposeName(ctx, path)
		if err != nil {
			return types.ProposedName{}, false, "", false, err
		}
		if useCache {
			r.save(r.store.SaveName(key, name))
		}
	}
	return name, false, "", cached && nameCached, nil
}

func (r *Runner) cacheKey(path, src string) (cache.Key, bool) {
	if !r.opts.UseCache || r.store == nil {
		return cache.Key{}, false
	}
	hash, err := r.store.Hash(path)
	if err != nil {
		log.LogWithError(err).Warn("cannot hash image, bypassing cache")
		return cache.Key{}, false
	}
	return cache.Key{
		Hash:     hash,
		Filename: src,
		Provider: r.vision.Provider(),
		Model:    r.vision.Model(),
	}, true
}

func (r *Runner) save(err error) {
	if err != nil {
		log.LogWithError(err).Warn("could not write cache entry")
	}
}

// Apply renames every record that needs it, in order, and rewrites the
// references of each one right after its rename. Failures are recorded on
// the item and the batch continues; the returned error joins them.
func (r *Runner) Apply(ctx context.Context, records []types.RenameRecord, summary *types.BatchSummary) error {
	var errs []error
	touched := make(map[string]struct{})
	for i := range records {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(records); j++ {
				summary.Add(&records[j])
			}
			errs = append(errs, err)
			break
		}

		rec := &records[i]
		if !rec.NeedsRename() {
			summary.Add(rec)
			continue
		}

		planned := *rec
		updates, err := r.applyOne(rec)
		if err != nil {
			log.LogWithError(err).Error("rename failed")
			rec.Status = types.StatusError
			rec.Message = err.Error()
			rec.Err = err
			summary.Add(rec)
			errs = append(errs, err)
		} else {
			summary.Add(&planned)
			for _, u := range updates {
				touched[u.FilePath] = struct{}{}
				summary.Replacements += u.ReplacementCount
			}
		}
		rec.UpdatedAt = r.now()
		if r.opts.OnApplied != nil {
			r.opts.OnApplied(*rec)
		}
	}
	summary.FilesTouched += len(touched)
	return errors.Join(errs...)
}

func (r *Runner) applyOne(rec *types.RenameRecord) ([]types.ReferenceUpdate, error) {
	oldPath := rec.Path
	newPath := filepath.Join(filepath.Dir(oldPath), rec.FinalName)

	// The planner looked at the directory earlier; something may have
	// claimed the name since.
	if err := checkTarget(oldPath, newPath); err != nil {
		return nil, err
	}

	var refs []types.MarkdownReference
	if r.opts.UpdateRefs {
		var err error
		refs, err = r.scanner.Scan(oldPath, r.opts.RefsRoot, r.opts.RefsRecursive)
		if err != nil {
			return nil, errors.Wrapf(err, "scanning references to %s", rec.SourceName)
		}
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, errors.NewFileError("rename failed", oldPath, errors.FileOperationFailed, err)
	}
	rec.Path = newPath
	rec.Status = types.StatusCompleted
	log.LogWithFields(log.F("from", rec.SourceName), log.F("to", rec.FinalName)).Info("renamed")

	if len(refs) == 0 {
		return nil, nil
	}
	updates, err := references.Rewrite(refs, rec.SourceName, rec.FinalName)
	for _, u := range updates {
		rec.Replacements += u.ReplacementCount
	}
	if err != nil {
		// The file is renamed; unrewritable references are reported, not fatal.
		log.LogWithError(err).Warn("some references were left unchanged")
		rec.Message = err.Error()
	}
	return updates, nil
}

func checkTarget(oldPath, newPath string) error {
	target, err := os.Lstat(newPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewFileError("cannot check rename target", newPath, errors.FileAccessDenied, err)
	}
	if source, err := os.Lstat(oldPath); err == nil && os.SameFile(source, target) {
		return nil // case-only rename on a case-folding filesystem
	}
	return errors.NewFileError("rename target already exists", newPath, errors.FileExists, nil)
}

// previewRefs counts, without writing, the references a dry run would
// rewrite.
func (r *Runner) previewRefs(records []types.RenameRecord, summary *types.BatchSummary) {
	touched := make(map[string]struct{})
	for i := range records {
		rec := &records[i]
		if !rec.NeedsRename() {
			continue
		}
		refs, err := r.scanner.Scan(rec.Path, r.opts.RefsRoot, r.opts.RefsRecursive)
		if err != nil {
			log.LogWithError(err).Warn("cannot scan references")
			continue
		}
		rec.Replacements = len(refs)
		summary.Replacements += len(refs)
		for _, ref := range refs {
			touched[ref.FilePath] = struct{}{}
		}
	}
	summary.FilesTouched += len(touched)
}
