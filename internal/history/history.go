// Package history keeps the undo/redo timeline of one project as a sequence
// of deep copies and a cursor into it.
//
// The sequence is either empty with index -1, or non-empty with the index
// pointing at the snapshot that matches the live project. History is not safe
// for concurrent use; the state manager guards it with its own lock.
package history

import "github.com/book-expert/tts-editor/internal/model"

// History is the snapshot sequence of the loaded project.
type History struct {
	snapshots  []*model.Project
	index      int
	suppressed bool
}

// New returns an empty history.
func New() *History {
	return &History{snapshots: nil, index: -1, suppressed: false}
}

// Reset replaces the sequence with a copy of project, or empties it when
// project is nil.
func (h *History) Reset(project *model.Project) {
	h.suppressed = false

	if project == nil {
		h.snapshots = nil
		h.index = -1

		return
	}

	h.snapshots = []*model.Project{project.Clone()}
	h.index = 0
}

// Suppress makes the next RecordIfNotSuppressed a no-op.
func (h *History) Suppress() {
	h.suppressed = true
}

// Suppressed reports whether the next record will be skipped.
func (h *History) Suppressed() bool {
	return h.suppressed
}

// RecordIfNotSuppressed appends a copy of project after the current index,
// dropping any redo branch. If the suppress flag is set it is consumed and
// nothing is recorded. It reports whether a snapshot was added.
func (h *History) RecordIfNotSuppressed(project *model.Project) bool {
	if h.suppressed {
		h.suppressed = false

		return false
	}

	if project == nil {
		return false
	}

	h.snapshots = append(h.snapshots[:h.index+1], project.Clone())
	h.index++

	return true
}

// Undo steps back and returns a copy of the snapshot now current. The
// suppress flag is set so installing the copy is not recorded again.
func (h *History) Undo() (*model.Project, bool) {
	if !h.CanUndo() {
		return nil, false
	}

	h.suppressed = true
	h.index--

	return h.snapshots[h.index].Clone(), true
}

// Redo steps forward and returns a copy of the snapshot now current.
func (h *History) Redo() (*model.Project, bool) {
	if !h.CanRedo() {
		return nil, false
	}

	h.suppressed = true
	h.index++

	return h.snapshots[h.index].Clone(), true
}

// Rewind puts the cursor back at index and clears the suppress flag, taking
// back an Undo or Redo whose snapshot could not be installed.
func (h *History) Rewind(index int) {
	h.suppressed = false

	if index < -1 || index >= len(h.snapshots) {
		return
	}

	h.index = index
}

// CanUndo reports whether there is an earlier snapshot.
func (h *History) CanUndo() bool {
	return h.index > 0
}

// CanRedo reports whether there is a later snapshot.
func (h *History) CanRedo() bool {
	return h.index < len(h.snapshots)-1
}

// Len returns the number of snapshots.
func (h *History) Len() int {
	return len(h.snapshots)
}

// Index returns the cursor, -1 when empty.
func (h *History) Index() int {
	return h.index
}
