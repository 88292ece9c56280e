// Package history implements the linear undo/redo engine. It owns only
// inverse-operation descriptors and canUndo/canRedo flags; segment data is
// always restored by the backing store and re-read from it, never
// reconstructed in memory.
package history

import (
	"context"
	"errors"
	"sync"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/logging"
	"github.com/okoshkin/dubedit/internal/store"
)

// Refresher reloads the in-memory segment collection after an undo/redo
// changed persisted segment data. The edit engine implements it.
type Refresher interface {
	Reload(ctx context.Context, projectID string) error
}

// Engine is the per-project undo/redo state machine.
//
// Flags are updated optimistically from each store response instead of a
// full stack refetch. This assumes the engine is the sole writer of
// history for the active project; a second writer would desync the flags.
//
// Two locks, deliberately: applying serializes undo/redo application,
// while mu guards only the flags and project id. Reload after an undo runs
// outside mu, so observers notified by the reload can call CanUndo/CanRedo
// without deadlocking.
type Engine struct {
	mu        sync.Mutex
	applying  sync.Mutex
	store     store.HistoryStore
	log       logging.Logger
	refresher Refresher

	projectID string
	canUndo   bool
	canRedo   bool
}

func New(st store.HistoryStore, log logging.Logger) *Engine {
	return &Engine{store: st, log: log}
}

// SetRefresher wires the collection reload callback. Must be called before
// the first Undo/Redo.
func (e *Engine) SetRefresher(r Refresher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refresher = r
}

// SetProject switches the active project and resets both flags until
// RefreshState is called.
func (e *Engine) SetProject(projectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.projectID = projectID
	e.canUndo = false
	e.canRedo = false
}

func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canUndo
}

func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canRedo
}

func flagOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Record pushes a new entry after a mutation. The response flags are
// adopted immediately; when the store omits them the entry just recorded
// is assumed undoable and the redo stack cleared.
func (e *Engine) Record(ctx context.Context, projectID string, entry store.EntryInput) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Record(ctx, projectID, entry)
	if err != nil {
		return err
	}
	e.canUndo = flagOr(state.CanUndo, true)
	e.canRedo = flagOr(state.CanRedo, false)
	return nil
}

// Undo reverses the most recent mutation. It is a no-op when no project is
// active, nothing is undoable, or another undo/redo is still applying.
// Store failures are logged, not propagated: the popped state stays
// whatever the store left it as, and the caller's UI is not rolled back.
func (e *Engine) Undo(ctx context.Context) {
	if !e.applying.TryLock() {
		e.log.Debug(ctx, "undo skipped", "reason", common.ErrBusy)
		return
	}
	defer e.applying.Unlock()

	e.mu.Lock()
	project := e.projectID
	can := e.canUndo
	e.mu.Unlock()
	if project == "" || !can {
		return
	}

	state, err := e.store.Undo(ctx, project)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			e.setFlags(false, e.CanRedo())
			return
		}
		e.log.Error(ctx, "undo failed", "project", project, "error", err)
		return
	}

	// Optimistic defaults: the popped action is now undone and can be
	// redone; assume nothing more to undo unless the store says otherwise.
	e.setFlags(flagOr(state.CanUndo, false), flagOr(state.CanRedo, true))

	e.reload(ctx, project)
}

// Redo reapplies the most recently undone mutation; symmetric to Undo.
func (e *Engine) Redo(ctx context.Context) {
	if !e.applying.TryLock() {
		e.log.Debug(ctx, "redo skipped", "reason", common.ErrBusy)
		return
	}
	defer e.applying.Unlock()

	e.mu.Lock()
	project := e.projectID
	can := e.canRedo
	e.mu.Unlock()
	if project == "" || !can {
		return
	}

	state, err := e.store.Redo(ctx, project)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			e.setFlags(e.CanUndo(), false)
			return
		}
		e.log.Error(ctx, "redo failed", "project", project, "error", err)
		return
	}

	e.setFlags(flagOr(state.CanUndo, true), flagOr(state.CanRedo, false))

	e.reload(ctx, project)
}

func (e *Engine) setFlags(canUndo, canRedo bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canUndo = canUndo
	e.canRedo = canRedo
}

// reload refreshes the segment collection from the store; undo/redo may
// have changed segment data arbitrarily. Runs without holding e.mu: the
// refresher notifies observers, and observers read the flags.
func (e *Engine) reload(ctx context.Context, projectID string) {
	e.mu.Lock()
	r := e.refresher
	e.mu.Unlock()

	if r == nil {
		return
	}
	if err := r.Reload(ctx, projectID); err != nil {
		e.log.Error(ctx, "segment reload after undo/redo failed",
			"project", projectID, "error", err)
	}
}

// RefreshState re-reads the canonical flags. Unlike undo/redo adoption,
// refresh is conservative: missing flags default to false, and no active
// project resets both flags.
func (e *Engine) RefreshState(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.projectID == "" {
		e.canUndo = false
		e.canRedo = false
		return
	}

	state, err := e.store.GetStack(ctx, e.projectID)
	if err != nil {
		e.log.Error(ctx, "history refresh failed", "project", e.projectID, "error", err)
		e.canUndo = false
		e.canRedo = false
		return
	}
	e.canUndo = flagOr(state.CanUndo, false)
	e.canRedo = flagOr(state.CanRedo, false)
}

// Clear drops all history for the active project and resets the flags.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.projectID == "" {
		return nil
	}
	if err := e.store.Clear(ctx, e.projectID); err != nil {
		return err
	}
	e.canUndo = false
	e.canRedo = false
	return nil
}
