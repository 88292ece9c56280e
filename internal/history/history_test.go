package history

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/okoshkin/dubedit/internal/logging"
	"github.com/okoshkin/dubedit/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeHistoryStore struct {
	recordState store.StackState
	recordErr   error
	undoState   store.StackState
	undoErr     error
	redoState   store.StackState
	redoErr     error
	stackState  store.StackState
	stackErr    error

	undoCalls   int
	redoCalls   int
	recordCalls int
	clearCalls  int
}

func (f *fakeHistoryStore) Record(ctx context.Context, projectID string, entry store.EntryInput) (store.StackState, error) {
	f.recordCalls++
	return f.recordState, f.recordErr
}

func (f *fakeHistoryStore) Undo(ctx context.Context, projectID string) (store.StackState, error) {
	f.undoCalls++
	return f.undoState, f.undoErr
}

func (f *fakeHistoryStore) Redo(ctx context.Context, projectID string) (store.StackState, error) {
	f.redoCalls++
	return f.redoState, f.redoErr
}

func (f *fakeHistoryStore) GetStack(ctx context.Context, projectID string) (store.StackState, error) {
	return f.stackState, f.stackErr
}

func (f *fakeHistoryStore) Clear(ctx context.Context, projectID string) error {
	f.clearCalls++
	return nil
}

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) Reload(ctx context.Context, projectID string) error {
	f.calls = append(f.calls, projectID)
	return f.err
}

func testLog() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func ptr(b bool) *bool { return &b }

func newEngine(t *testing.T, fs *fakeHistoryStore) (*Engine, *fakeRefresher) {
	t.Helper()
	e := New(fs, testLog())
	r := &fakeRefresher{}
	e.SetRefresher(r)
	e.SetProject("p1")
	return e, r
}

func TestUndo_NoProjectIsNoop(t *testing.T) {
	fs := &fakeHistoryStore{}
	e := New(fs, testLog())

	e.Undo(context.Background())
	require.Zero(t, fs.undoCalls)
}

func TestUndo_NothingUndoableIsNoop(t *testing.T) {
	fs := &fakeHistoryStore{}
	e, _ := newEngine(t, fs)

	e.Undo(context.Background())
	require.Zero(t, fs.undoCalls)
}

func TestRecord_AdoptsResponseFlags(t *testing.T) {
	fs := &fakeHistoryStore{
		recordState: store.StackState{CanUndo: ptr(true), CanRedo: ptr(false)},
	}
	e, _ := newEngine(t, fs)

	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))
	require.True(t, e.CanUndo())
	require.False(t, e.CanRedo())
}

func TestRecord_DefaultsWhenFlagsOmitted(t *testing.T) {
	fs := &fakeHistoryStore{}
	e, _ := newEngine(t, fs)

	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))
	require.True(t, e.CanUndo(), "a just-recorded entry is assumed undoable")
	require.False(t, e.CanRedo(), "recording clears redo")
}

func TestUndo_OptimisticDefaultsWhenFlagsOmitted(t *testing.T) {
	fs := &fakeHistoryStore{
		recordState: store.StackState{CanUndo: ptr(true)},
	}
	e, r := newEngine(t, fs)
	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))

	e.Undo(context.Background())
	require.Equal(t, 1, fs.undoCalls)
	require.False(t, e.CanUndo(), "assume nothing more to undo unless told")
	require.True(t, e.CanRedo(), "the popped action can be redone")
	require.Equal(t, []string{"p1"}, r.calls, "segments reload after undo")
}

func TestRedo_OptimisticDefaultsWhenFlagsOmitted(t *testing.T) {
	fs := &fakeHistoryStore{
		recordState: store.StackState{CanUndo: ptr(true)},
	}
	e, r := newEngine(t, fs)
	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))
	e.Undo(context.Background())

	e.Redo(context.Background())
	require.Equal(t, 1, fs.redoCalls)
	require.True(t, e.CanUndo())
	require.False(t, e.CanRedo())
	require.Len(t, r.calls, 2)
}

func TestUndo_AdoptsExplicitFlags(t *testing.T) {
	fs := &fakeHistoryStore{
		recordState: store.StackState{CanUndo: ptr(true)},
		undoState:   store.StackState{CanUndo: ptr(true), CanRedo: ptr(true)},
	}
	e, _ := newEngine(t, fs)
	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))

	e.Undo(context.Background())
	require.True(t, e.CanUndo())
	require.True(t, e.CanRedo())
}

func TestUndo_StoreErrorIsLoggedNotFatal(t *testing.T) {
	fs := &fakeHistoryStore{
		recordState: store.StackState{CanUndo: ptr(true)},
		undoErr:     errors.New("backing store exploded"),
	}
	e, r := newEngine(t, fs)
	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))

	e.Undo(context.Background())
	require.True(t, e.CanUndo(), "flags unchanged on failure")
	require.Empty(t, r.calls, "no reload after failed undo")

	// The engine is usable again immediately.
	fs.undoErr = nil
	e.Undo(context.Background())
	require.Equal(t, 2, fs.undoCalls)
}

func TestRefreshState_ConservativeDefaults(t *testing.T) {
	fs := &fakeHistoryStore{} // GetStack returns no flags
	e, _ := newEngine(t, fs)

	e.RefreshState(context.Background())
	require.False(t, e.CanUndo())
	require.False(t, e.CanRedo())
}

func TestRefreshState_NoProjectResetsFlags(t *testing.T) {
	fs := &fakeHistoryStore{
		recordState: store.StackState{CanUndo: ptr(true), CanRedo: ptr(true)},
	}
	e, _ := newEngine(t, fs)
	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))

	e.SetProject("")
	e.RefreshState(context.Background())
	require.False(t, e.CanUndo())
	require.False(t, e.CanRedo())
}

func TestRefreshState_AdoptsStackFlags(t *testing.T) {
	fs := &fakeHistoryStore{
		stackState: store.StackState{CanUndo: ptr(true), CanRedo: ptr(true)},
	}
	e, _ := newEngine(t, fs)

	e.RefreshState(context.Background())
	require.True(t, e.CanUndo())
	require.True(t, e.CanRedo())
}

func TestClear_ResetsFlags(t *testing.T) {
	fs := &fakeHistoryStore{
		recordState: store.StackState{CanUndo: ptr(true)},
	}
	e, _ := newEngine(t, fs)
	require.NoError(t, e.Record(context.Background(), "p1", store.EntryInput{}))

	require.NoError(t, e.Clear(context.Background()))
	require.Equal(t, 1, fs.clearCalls)
	require.False(t, e.CanUndo())
	require.False(t, e.CanRedo())
}
