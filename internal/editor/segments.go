package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
)

// Create validates and appends a new segment. It records no history entry;
// callers that need an undoable create wrap it themselves.
func (e *Engine) Create(ctx context.Context, in store.CreateSegmentInput) (models.Segment, error) {
	if err := e.requireProject(); err != nil {
		return models.Segment{}, err
	}
	if in.ProjectID != e.projectID {
		return models.Segment{}, fmt.Errorf("segment belongs to another project: %w", common.ErrValidation)
	}
	if strings.TrimSpace(in.TranslatedText) == "" {
		return models.Segment{}, fmt.Errorf("translated text required: %w", common.ErrValidation)
	}
	if in.EndTimeMs <= in.StartTimeMs {
		return models.Segment{}, fmt.Errorf("end time must be after start time: %w", common.ErrValidation)
	}

	seg, err := e.segStore.Create(ctx, in)
	if err != nil {
		return models.Segment{}, err
	}

	e.segments = append(e.segments, seg)
	e.notify()
	return seg, nil
}

// CreateUndoable creates a segment through Create and records a history
// entry for it: undo deletes the segment by id, redo reinserts it in full.
func (e *Engine) CreateUndoable(ctx context.Context, in store.CreateSegmentInput) (models.Segment, error) {
	seg, err := e.Create(ctx, in)
	if err != nil {
		return models.Segment{}, err
	}

	e.record(ctx, models.ActionSegmentCreate,
		models.CreateUndo{SegmentID: seg.ID},
		models.CreateRedo{Segment: seg})
	return seg, nil
}

// Update merges the given fields into one segment and records a history
// entry whose undo payload is the full previous segment and whose redo
// payload is the full new one. Individually edited fields therefore revert
// as one atomic step.
func (e *Engine) Update(ctx context.Context, id string, patch store.SegmentPatch) (models.Segment, error) {
	i := e.indexOf(id)
	if i < 0 {
		return models.Segment{}, fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
	}

	// Snapshot before the round trip; the store mutates first.
	prev := e.segments[i]

	updated, err := e.segStore.Update(ctx, id, patch)
	if err != nil {
		return models.Segment{}, err
	}

	e.record(ctx, models.ActionSegmentUpdate,
		models.UpdateUndo{Segment: prev},
		models.UpdateRedo{Segment: updated})

	e.segments[i] = updated
	e.notify()
	return updated, nil
}

// Delete removes one segment, recording the full deleted segment for undo
// and its id for redo.
func (e *Engine) Delete(ctx context.Context, id string) error {
	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
	}
	deleted := e.segments[i]

	if err := e.segStore.Delete(ctx, id); err != nil {
		return err
	}

	e.record(ctx, models.ActionSegmentDelete,
		models.DeleteUndo{Segment: deleted},
		models.DeleteRedo{SegmentID: id})

	e.segments = append(e.segments[:i], e.segments[i+1:]...)
	delete(e.selection, id)
	e.notify()
	return nil
}

// DeleteMany deletes each id in the order given, recording one history
// entry per segment. Undo therefore reverses one deletion at a time, not
// the whole batch.
func (e *Engine) DeleteMany(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := e.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// BatchUpdate applies all patches in one backing-store round trip and
// defensively merges the result: segments absent from the store's response
// are left unchanged locally. Batch edits record no history and are not
// undoable as a unit.
func (e *Engine) BatchUpdate(ctx context.Context, updates []store.SegmentUpdate) error {
	if err := e.requireProject(); err != nil {
		return err
	}

	result, err := e.segStore.BatchUpdate(ctx, updates)
	if err != nil {
		return err
	}

	for _, updated := range result {
		if i := e.indexOf(updated.ID); i >= 0 {
			e.segments[i] = updated
		}
	}
	e.notify()
	return nil
}

// Split divides a segment at atMs, which must fall strictly inside its
// time range. The first half keeps the original id; text, voice and
// speaker duplicate onto both halves. Splits record no history.
func (e *Engine) Split(ctx context.Context, id string, atMs int64) ([2]models.Segment, error) {
	i := e.indexOf(id)
	if i < 0 {
		return [2]models.Segment{}, fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
	}
	seg := e.segments[i]
	if atMs <= seg.StartTimeMs || atMs >= seg.EndTimeMs {
		return [2]models.Segment{}, fmt.Errorf("split point %d outside (%d, %d): %w",
			atMs, seg.StartTimeMs, seg.EndTimeMs, common.ErrValidation)
	}

	halves, err := e.segStore.Split(ctx, id, atMs)
	if err != nil {
		return [2]models.Segment{}, err
	}

	e.segments[i] = halves[0]
	e.segments = append(e.segments[:i+1],
		append([]models.Segment{halves[1]}, e.segments[i+1:]...)...)
	e.notify()
	return halves, nil
}

// Merge combines the given segments into one. The history undo payload
// holds the full originals sorted by start time, the redo payload the
// merged segment plus the original id list. Selection collapses to the
// merged segment. Contiguity is the store's call: if it refuses, no local
// mutation happens.
func (e *Engine) Merge(ctx context.Context, ids []string) (models.Segment, error) {
	if len(ids) < 2 {
		return models.Segment{}, fmt.Errorf("merge needs at least two segments: %w", common.ErrValidation)
	}

	originals := make([]models.Segment, 0, len(ids))
	first := -1
	for _, id := range ids {
		i := e.indexOf(id)
		if i < 0 {
			return models.Segment{}, fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
		}
		if first < 0 || i < first {
			first = i
		}
		originals = append(originals, e.segments[i])
	}

	merged, err := e.segStore.Merge(ctx, ids)
	if err != nil {
		return models.Segment{}, err
	}

	e.record(ctx, models.ActionSegmentMerge,
		models.MergeUndo{Originals: SortedByStart(originals), MergedID: merged.ID},
		models.MergeRedo{OriginalIDs: ids, Merged: merged})

	removed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		removed[id] = struct{}{}
	}
	out := e.segments[:0:0]
	for i := range e.segments {
		if i == first {
			out = append(out, merged)
		}
		if _, ok := removed[e.segments[i].ID]; ok {
			continue
		}
		out = append(out, e.segments[i])
	}
	e.segments = out

	e.selection = map[string]struct{}{merged.ID: {}}
	e.notify()
	return merged, nil
}

// Reorder persists the new id order and reprojects the local collection to
// that exact sequence. Ids not present locally are skipped, not errors.
func (e *Engine) Reorder(ctx context.Context, projectID string, idOrder []string) error {
	if err := e.requireProject(); err != nil {
		return err
	}
	if projectID != e.projectID {
		return fmt.Errorf("reorder targets another project: %w", common.ErrValidation)
	}

	if err := e.segStore.Reorder(ctx, projectID, idOrder); err != nil {
		return err
	}

	byID := make(map[string]models.Segment, len(e.segments))
	for i := range e.segments {
		byID[e.segments[i].ID] = e.segments[i]
	}
	reordered := make([]models.Segment, 0, len(idOrder))
	for _, id := range idOrder {
		if seg, ok := byID[id]; ok {
			reordered = append(reordered, seg)
		}
	}
	e.segments = reordered
	e.pruneSelection()
	e.notify()
	return nil
}
