// Package editor implements the segment edit engine: it exclusively owns
// the in-memory segment and speaker collections for the active project and
// is the only path through which they mutate. Every structural or field
// mutation round-trips to the backing store first; local state changes only
// after the store succeeded, so a failed operation leaves memory untouched.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/history"
	"github.com/okoshkin/dubedit/internal/logging"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
	"github.com/okoshkin/dubedit/internal/voice"
)

// Engine coordinates segment/speaker state, history recording and audio
// regeneration for one active project.
//
// Structural mutations are cooperative: callers await completion before
// issuing the next edit. The engine does not serialize concurrent
// conflicting edits; a double-delete of the same id fails with ErrNotFound
// on the second attempt rather than corrupting state.
type Engine struct {
	log      logging.Logger
	segStore store.SegmentStore
	spkStore store.SpeakerStore
	hist     *history.Engine
	synth    voice.Synthesizer

	projectID string
	segments  []models.Segment
	speakers  []models.Speaker
	selection map[string]struct{}

	// errMsg is the surfaced load/operation error a caller can render;
	// it is cleared explicitly, not on the next success.
	errMsg string

	observers []func()
}

func New(segStore store.SegmentStore, spkStore store.SpeakerStore,
	hist *history.Engine, synth voice.Synthesizer, log logging.Logger) *Engine {

	e := &Engine{
		log:       log,
		segStore:  segStore,
		spkStore:  spkStore,
		hist:      hist,
		synth:     synth,
		selection: make(map[string]struct{}),
	}
	if hist != nil {
		hist.SetRefresher(e)
	}
	return e
}

// Subscribe registers fn to run after every segment-collection change.
func (e *Engine) Subscribe(fn func()) {
	e.observers = append(e.observers, fn)
}

func (e *Engine) notify() {
	for _, fn := range e.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					// A misbehaving observer must not take the engine down,
					// and a panic value that is not an error is normalized
					// before it reaches a log line.
					e.log.Error(context.Background(), "observer panicked",
						"error", common.Normalize(r))
				}
			}()
			fn()
		}()
	}
}

// Err returns the surfaced error state, empty when none.
func (e *Engine) Err() string { return e.errMsg }

// ClearErr resets the surfaced error state.
func (e *Engine) ClearErr() { e.errMsg = "" }

// ProjectID returns the active project, empty when none is open.
func (e *Engine) ProjectID() string { return e.projectID }

// OpenProject loads the segment and speaker collections for projectID and
// resets selection and history flags. On load failure the error is both
// surfaced via Err and returned; a retry is safe.
func (e *Engine) OpenProject(ctx context.Context, projectID string) error {
	segs, err := e.segStore.GetAll(ctx, projectID)
	if err != nil {
		e.errMsg = err.Error()
		return fmt.Errorf("load segments: %w: %w", common.ErrStore, err)
	}
	spks, err := e.spkStore.GetAll(ctx, projectID)
	if err != nil {
		e.errMsg = err.Error()
		return fmt.Errorf("load speakers: %w: %w", common.ErrStore, err)
	}

	e.projectID = projectID
	e.segments = segs
	e.speakers = spks
	e.selection = make(map[string]struct{})

	if e.hist != nil {
		e.hist.SetProject(projectID)
		e.hist.RefreshState(ctx)
	}

	e.log.Info(ctx, "project opened", "project", projectID,
		"segments", len(segs), "speakers", len(spks))
	e.notify()
	return nil
}

// CloseProject drops all transient state.
func (e *Engine) CloseProject() {
	e.projectID = ""
	e.segments = nil
	e.speakers = nil
	e.selection = make(map[string]struct{})
	e.errMsg = ""
	if e.hist != nil {
		e.hist.SetProject("")
	}
	e.notify()
}

// Reload re-reads the segment collection from the store. The history
// engine calls this after undo/redo, which may have changed segment data
// arbitrarily.
func (e *Engine) Reload(ctx context.Context, projectID string) error {
	segs, err := e.segStore.GetAll(ctx, projectID)
	if err != nil {
		e.errMsg = err.Error()
		return fmt.Errorf("reload segments: %w: %w", common.ErrStore, err)
	}
	e.segments = segs
	e.pruneSelection()
	e.notify()
	return nil
}

// Segments returns a copy of the current collection in list order.
func (e *Engine) Segments() []models.Segment {
	out := make([]models.Segment, len(e.segments))
	copy(out, e.segments)
	return out
}

// Segment returns the segment with the given id by value.
func (e *Engine) Segment(id string) (models.Segment, bool) {
	i := e.indexOf(id)
	if i < 0 {
		return models.Segment{}, false
	}
	return e.segments[i], true
}

// History exposes the history engine for undo/redo and flag queries.
func (e *Engine) History() *history.Engine { return e.hist }

func (e *Engine) indexOf(id string) int {
	for i := range e.segments {
		if e.segments[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) record(ctx context.Context, action models.ActionType, undo, redo any) {
	if e.hist == nil {
		return
	}
	undoData, err := json.Marshal(undo)
	if err != nil {
		e.log.Error(ctx, "failed to encode undo payload", "action", action, "error", err)
		return
	}
	redoData, err := json.Marshal(redo)
	if err != nil {
		e.log.Error(ctx, "failed to encode redo payload", "action", action, "error", err)
		return
	}
	err = e.hist.Record(ctx, e.projectID, store.EntryInput{
		ActionType: action,
		UndoData:   undoData,
		RedoData:   redoData,
	})
	if err != nil {
		// The mutation itself already persisted; a failed record only costs
		// one undo step.
		e.log.Error(ctx, "failed to record history entry", "action", action, "error", err)
	}
}

func (e *Engine) pruneSelection() {
	present := make(map[string]struct{}, len(e.segments))
	for i := range e.segments {
		present[e.segments[i].ID] = struct{}{}
	}
	for id := range e.selection {
		if _, ok := present[id]; !ok {
			delete(e.selection, id)
		}
	}
}

// StaleSegments returns the segments whose generated audio no longer
// matches their text/voice/duration, in list order.
func (e *Engine) StaleSegments() []models.Segment {
	var out []models.Segment
	for i := range e.segments {
		if e.segments[i].IsStale() {
			out = append(out, e.segments[i])
		}
	}
	return out
}

// SortedByStart returns a copy of segs ordered by start time.
func SortedByStart(segs []models.Segment) []models.Segment {
	out := make([]models.Segment, len(segs))
	copy(out, segs)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTimeMs < out[j].StartTimeMs })
	return out
}

func (e *Engine) requireProject() error {
	if e.projectID == "" {
		return fmt.Errorf("no active project: %w", common.ErrValidation)
	}
	return nil
}
