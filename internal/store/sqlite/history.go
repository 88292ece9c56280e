package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/dbx"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
)

// HistoryStore implements store.HistoryStore on SQLite. Undo/redo apply the
// inverse payloads directly to the segments table, so history survives a
// process restart along with the rest of the project.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

const (
	stackUndo = "undo"
	stackRedo = "redo"
)

func boolPtr(b bool) *bool { return &b }

func countStack(ctx context.Context, db dbx.DBTX, projectID, stack string) (int, error) {
	var n int
	row := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history_entries WHERE project_id = ? AND stack = ?`, projectID, stack)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s stack: %w", stack, err)
	}
	return n, nil
}

// Record pushes a new entry onto the undo stack and clears the redo stack:
// any new mutation invalidates prior redo history.
func (r *HistoryStore) Record(ctx context.Context, projectID string, entry store.EntryInput) (store.StackState, error) {
	var state store.StackState
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var seq int64
		row := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq) + 1, 1) FROM history_entries WHERE project_id = ?`, projectID)
		if err := row.Scan(&seq); err != nil {
			return fmt.Errorf("failed to compute seq: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM history_entries WHERE project_id = ? AND stack = ?`,
			projectID, stackRedo); err != nil {
			return fmt.Errorf("failed to clear redo stack: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO history_entries (id, project_id, seq, stack, action_type, undo_data, redo_data, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), projectID, seq, stackUndo, entry.ActionType,
			string(entry.UndoData), string(entry.RedoData), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}

		state = store.StackState{CanUndo: boolPtr(true), CanRedo: boolPtr(false)}
		return nil
	})
	if err != nil {
		return store.StackState{}, err
	}
	return state, nil
}

func topEntry(ctx context.Context, tx dbx.DBTX, projectID, stack string) (models.HistoryEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, project_id, seq, action_type, undo_data, redo_data, created_at
		 FROM history_entries WHERE project_id = ? AND stack = ?
		 ORDER BY seq DESC LIMIT 1`, projectID, stack)

	var e models.HistoryEntry
	var undoData, redoData string
	err := row.Scan(&e.ID, &e.ProjectID, &e.Seq, &e.ActionType, &undoData, &redoData, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryEntry{}, fmt.Errorf("%s stack empty: %w", stack, common.ErrNotFound)
	}
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to select history entry: %w", err)
	}
	e.UndoData = json.RawMessage(undoData)
	e.RedoData = json.RawMessage(redoData)
	return e, nil
}

func applyUndo(ctx context.Context, tx dbx.DBTX, e models.HistoryEntry) error {
	switch e.ActionType {
	case models.ActionSegmentUpdate:
		var p models.UpdateUndo
		if err := json.Unmarshal(e.UndoData, &p); err != nil {
			return fmt.Errorf("decode undo payload: %w", err)
		}
		return writeFullSegment(ctx, tx, p.Segment)

	case models.ActionSegmentDelete:
		var p models.DeleteUndo
		if err := json.Unmarshal(e.UndoData, &p); err != nil {
			return fmt.Errorf("decode undo payload: %w", err)
		}
		return writeFullSegment(ctx, tx, p.Segment)

	case models.ActionSegmentMerge:
		var p models.MergeUndo
		if err := json.Unmarshal(e.UndoData, &p); err != nil {
			return fmt.Errorf("decode undo payload: %w", err)
		}
		if len(p.Originals) == 0 {
			return fmt.Errorf("merge undo payload has no originals: %w", common.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, p.MergedID); err != nil {
			return fmt.Errorf("failed to remove merged segment: %w", err)
		}

		// The merge compacted every later order index by n-1; shift them
		// back up before restoring the originals at their old indexes, or
		// restored and following segments end up sharing an index.
		minIdx := p.Originals[0].OrderIndex
		for _, s := range p.Originals[1:] {
			if s.OrderIndex < minIdx {
				minIdx = s.OrderIndex
			}
		}
		if shift := len(p.Originals) - 1; shift > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE segments SET order_index = order_index + ?
				 WHERE project_id = ? AND order_index > ?`,
				shift, p.Originals[0].ProjectID, minIdx); err != nil {
				return fmt.Errorf("failed to unshift order indexes: %w", err)
			}
		}

		for _, s := range p.Originals {
			if err := writeFullSegment(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil

	case models.ActionSegmentCreate:
		var p models.CreateUndo
		if err := json.Unmarshal(e.UndoData, &p); err != nil {
			return fmt.Errorf("decode undo payload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, p.SegmentID); err != nil {
			return fmt.Errorf("failed to remove created segment: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown action type %q: %w", e.ActionType, common.ErrValidation)
	}
}

func applyRedo(ctx context.Context, tx dbx.DBTX, e models.HistoryEntry) error {
	switch e.ActionType {
	case models.ActionSegmentUpdate:
		var p models.UpdateRedo
		if err := json.Unmarshal(e.RedoData, &p); err != nil {
			return fmt.Errorf("decode redo payload: %w", err)
		}
		return writeFullSegment(ctx, tx, p.Segment)

	case models.ActionSegmentDelete:
		var p models.DeleteRedo
		if err := json.Unmarshal(e.RedoData, &p); err != nil {
			return fmt.Errorf("decode redo payload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, p.SegmentID); err != nil {
			return fmt.Errorf("failed to delete segment: %w", err)
		}
		return nil

	case models.ActionSegmentMerge:
		var p models.MergeRedo
		if err := json.Unmarshal(e.RedoData, &p); err != nil {
			return fmt.Errorf("decode redo payload: %w", err)
		}
		for _, id := range p.OriginalIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete original segment: %w", err)
			}
		}

		// Re-apply the compaction the merge performed on later segments.
		if shift := len(p.OriginalIDs) - 1; shift > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE segments SET order_index = order_index - ?
				 WHERE project_id = ? AND order_index > ?`,
				shift, p.Merged.ProjectID, p.Merged.OrderIndex+shift); err != nil {
				return fmt.Errorf("failed to shift order indexes: %w", err)
			}
		}

		return writeFullSegment(ctx, tx, p.Merged)

	case models.ActionSegmentCreate:
		var p models.CreateRedo
		if err := json.Unmarshal(e.RedoData, &p); err != nil {
			return fmt.Errorf("decode redo payload: %w", err)
		}
		return writeFullSegment(ctx, tx, p.Segment)

	default:
		return fmt.Errorf("unknown action type %q: %w", e.ActionType, common.ErrValidation)
	}
}

// Undo applies the inverse of the most recent entry and moves it onto the
// redo stack.
func (r *HistoryStore) Undo(ctx context.Context, projectID string) (store.StackState, error) {
	var state store.StackState
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := topEntry(ctx, tx, projectID, stackUndo)
		if err != nil {
			return err
		}
		if err := applyUndo(ctx, tx, e); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE history_entries SET stack = ? WHERE id = ?`, stackRedo, e.ID); err != nil {
			return fmt.Errorf("failed to move entry to redo stack: %w", err)
		}

		remaining, err := countStack(ctx, tx, projectID, stackUndo)
		if err != nil {
			return err
		}
		state = store.StackState{CanUndo: boolPtr(remaining > 0), CanRedo: boolPtr(true)}
		return nil
	})
	if err != nil {
		return store.StackState{}, err
	}
	return state, nil
}

// Redo reapplies the most recently undone entry and moves it back onto the
// undo stack.
func (r *HistoryStore) Redo(ctx context.Context, projectID string) (store.StackState, error) {
	var state store.StackState
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// The redo stack pops lowest seq first: entries were pushed onto it
		// in reverse mutation order.
		row := tx.QueryRowContext(ctx,
			`SELECT id, project_id, seq, action_type, undo_data, redo_data, created_at
			 FROM history_entries WHERE project_id = ? AND stack = ?
			 ORDER BY seq ASC LIMIT 1`, projectID, stackRedo)

		var e models.HistoryEntry
		var undoData, redoData string
		err := row.Scan(&e.ID, &e.ProjectID, &e.Seq, &e.ActionType, &undoData, &redoData, &e.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("redo stack empty: %w", common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to select history entry: %w", err)
		}
		e.UndoData = json.RawMessage(undoData)
		e.RedoData = json.RawMessage(redoData)

		if err := applyRedo(ctx, tx, e); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE history_entries SET stack = ? WHERE id = ?`, stackUndo, e.ID); err != nil {
			return fmt.Errorf("failed to move entry to undo stack: %w", err)
		}

		remaining, err := countStack(ctx, tx, projectID, stackRedo)
		if err != nil {
			return err
		}
		state = store.StackState{CanUndo: boolPtr(true), CanRedo: boolPtr(remaining > 0)}
		return nil
	})
	if err != nil {
		return store.StackState{}, err
	}
	return state, nil
}

// GetStack reports both flags from the persisted stacks.
func (r *HistoryStore) GetStack(ctx context.Context, projectID string) (store.StackState, error) {
	undo, err := countStack(ctx, r.db, projectID, stackUndo)
	if err != nil {
		return store.StackState{}, err
	}
	redo, err := countStack(ctx, r.db, projectID, stackRedo)
	if err != nil {
		return store.StackState{}, err
	}
	return store.StackState{CanUndo: boolPtr(undo > 0), CanRedo: boolPtr(redo > 0)}, nil
}

// Clear drops all history for a project.
func (r *HistoryStore) Clear(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM history_entries WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
