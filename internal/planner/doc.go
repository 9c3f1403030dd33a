// Package planner decides the final on-disk name for each image of a rename
// batch.
//
// A decision is idempotent (an image whose current stem already equals the
// proposed stem keeps its name) and collision-free: a candidate that exists
// in the target directory, or that another item of the same batch already
// claimed, is bumped to stem-2, stem-3 and so on. Claims live in a
// BatchContext owned by the caller, so two batches never see each other's
// pending names.
package planner
