package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/history"
	"github.com/okoshkin/dubedit/internal/logging"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
	"github.com/okoshkin/dubedit/internal/store/sqlite"
	"github.com/okoshkin/dubedit/internal/voice"
)

var dbSeq atomic.Int64

type fakeSynth struct {
	calls  []voice.Request
	failOn map[string]error
}

func (f *fakeSynth) GenerateSingle(_ context.Context, req voice.Request) (voice.Result, error) {
	f.calls = append(f.calls, req)
	if err, ok := f.failOn[req.SegmentID]; ok {
		return voice.Result{}, err
	}
	return voice.Result{
		AudioPath:  "/audio/p1/" + req.SegmentID + ".wav",
		DurationMs: 1200,
	}, nil
}

func testLog() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func newTestEngine(t *testing.T) (*Engine, *fakeSynth) {
	t.Helper()
	dsn := fmt.Sprintf("file:editortest%d?mode=memory&cache=shared", dbSeq.Add(1))
	st, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	st.DB.SetMaxOpenConns(1)
	st.DB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = st.Close() })

	synth := &fakeSynth{failOn: map[string]error{}}
	hist := history.New(st.History, testLog())
	eng := New(st.Segments, st.Speakers, hist, synth, testLog())
	require.NoError(t, eng.OpenProject(context.Background(), "p1"))
	return eng, synth
}

func addSegment(t *testing.T, eng *Engine, text string, startMs, endMs int64) models.Segment {
	t.Helper()
	seg, err := eng.Create(context.Background(), store.CreateSegmentInput{
		ProjectID:      "p1",
		StartTimeMs:    startMs,
		EndTimeMs:      endMs,
		TranslatedText: text,
	})
	require.NoError(t, err)
	return seg
}

func TestCreate_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Create(ctx, store.CreateSegmentInput{
		ProjectID: "p1", StartTimeMs: 0, EndTimeMs: 1000, TranslatedText: "   ",
	})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = eng.Create(ctx, store.CreateSegmentInput{
		ProjectID: "p1", StartTimeMs: 1000, EndTimeMs: 1000, TranslatedText: "x",
	})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = eng.Create(ctx, store.CreateSegmentInput{
		ProjectID: "p2", StartTimeMs: 0, EndTimeMs: 1000, TranslatedText: "x",
	})
	require.ErrorIs(t, err, common.ErrValidation, "wrong project")
}

func TestCreateUndoable_UndoRemovesRedoRestores(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	seg, err := eng.CreateUndoable(ctx, store.CreateSegmentInput{
		ProjectID: "p1", StartTimeMs: 0, EndTimeMs: 1000, TranslatedText: "hello",
	})
	require.NoError(t, err)
	require.True(t, eng.History().CanUndo())

	eng.History().Undo(ctx)
	require.Empty(t, eng.Segments())

	eng.History().Redo(ctx)
	segs := eng.Segments()
	require.Len(t, segs, 1)
	require.Equal(t, seg.ID, segs[0].ID)
	require.Equal(t, "hello", segs[0].TranslatedText)
}

func TestUpdate_UndoRedoRestoresFields(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seg := addSegment(t, eng, "hello", 0, 1000)

	text := "bonjour"
	end := int64(1500)
	_, err := eng.Update(ctx, seg.ID, store.SegmentPatch{TranslatedText: &text, EndTimeMs: &end})
	require.NoError(t, err)
	require.True(t, eng.History().CanUndo())

	eng.History().Undo(ctx)
	got, ok := eng.Segment(seg.ID)
	require.True(t, ok)
	require.Equal(t, "hello", got.TranslatedText)
	require.Equal(t, int64(1000), got.EndTimeMs)
	require.False(t, eng.History().CanUndo())
	require.True(t, eng.History().CanRedo())

	eng.History().Redo(ctx)
	got, ok = eng.Segment(seg.ID)
	require.True(t, ok)
	require.Equal(t, "bonjour", got.TranslatedText)
	require.Equal(t, int64(1500), got.EndTimeMs)
}

func TestUpdate_TwoUndosOfThreeEdits(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seg := addSegment(t, eng, "v1", 0, 1000)

	for _, text := range []string{"v2", "v3", "v4"} {
		text := text
		_, err := eng.Update(ctx, seg.ID, store.SegmentPatch{TranslatedText: &text})
		require.NoError(t, err)
	}

	eng.History().Undo(ctx)
	eng.History().Undo(ctx)

	got, _ := eng.Segment(seg.ID)
	require.Equal(t, "v2", got.TranslatedText)
	require.True(t, eng.History().CanUndo())
	require.True(t, eng.History().CanRedo())
}

func TestDelete_UndoRestoresSegmentInPlace(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "one", 0, 1000)
	b := addSegment(t, eng, "two", 1000, 2000)

	require.NoError(t, eng.Delete(ctx, a.ID))
	require.Len(t, eng.Segments(), 1)

	eng.History().Undo(ctx)
	segs := eng.Segments()
	require.Len(t, segs, 2)
	require.Equal(t, a.ID, segs[0].ID, "restored at its original position")
	require.Equal(t, b.ID, segs[1].ID)
}

func TestDeleteMany_OneHistoryEntryPerSegment(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "one", 0, 1000)
	b := addSegment(t, eng, "two", 1000, 2000)
	c := addSegment(t, eng, "three", 2000, 3000)

	require.NoError(t, eng.DeleteMany(ctx, []string{a.ID, c.ID}))
	require.Len(t, eng.Segments(), 1)

	// One undo step reverses only the most recent deletion.
	eng.History().Undo(ctx)
	segs := eng.Segments()
	require.Len(t, segs, 2)
	require.Equal(t, []string{b.ID, c.ID}, []string{segs[0].ID, segs[1].ID})

	eng.History().Undo(ctx)
	require.Len(t, eng.Segments(), 3)
}

func TestSplit_InsertsSecondHalfAfterFirst(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "whole", 0, 10000)
	b := addSegment(t, eng, "after", 10000, 12000)

	halves, err := eng.Split(ctx, a.ID, 4000)
	require.NoError(t, err)
	require.Equal(t, a.ID, halves[0].ID)
	require.Equal(t, int64(4000), halves[0].EndTimeMs)
	require.Equal(t, int64(4000), halves[1].StartTimeMs)
	require.Equal(t, "whole", halves[1].TranslatedText)
	require.Empty(t, halves[1].AudioFilePath)

	segs := eng.Segments()
	require.Equal(t, []string{a.ID, halves[1].ID, b.ID},
		[]string{segs[0].ID, segs[1].ID, segs[2].ID})
}

func TestSplit_RejectsBoundaryPoints(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "whole", 1000, 2000)

	for _, at := range []int64{1000, 2000, 500, 3000} {
		_, err := eng.Split(ctx, a.ID, at)
		require.ErrorIs(t, err, common.ErrValidation, "split at %d", at)
	}
	require.Len(t, eng.Segments(), 1)
}

func TestSplit_NotUndoable(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "whole", 0, 10000)

	_, err := eng.Split(ctx, a.ID, 5000)
	require.NoError(t, err)
	require.False(t, eng.History().CanUndo())
}

func TestMerge_UndoRestoresOriginals(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "first", 0, 1000)
	b := addSegment(t, eng, "second", 1000, 2500)
	c := addSegment(t, eng, "tail", 2500, 3000)

	merged, err := eng.Merge(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.Equal(t, "first second", merged.TranslatedText)
	require.Equal(t, int64(0), merged.StartTimeMs)
	require.Equal(t, int64(2500), merged.EndTimeMs)

	segs := eng.Segments()
	require.Equal(t, []string{merged.ID, c.ID}, []string{segs[0].ID, segs[1].ID})
	require.Equal(t, []string{merged.ID}, eng.SelectedIDs(), "selection collapses to merged")

	eng.History().Undo(ctx)
	segs = eng.Segments()
	require.Len(t, segs, 3)
	require.Equal(t, []string{a.ID, b.ID, c.ID},
		[]string{segs[0].ID, segs[1].ID, segs[2].ID})
	require.Equal(t, "first", segs[0].TranslatedText)
	require.Equal(t, "second", segs[1].TranslatedText)
	require.Empty(t, eng.SelectedIDs(), "merged id pruned from selection")

	eng.History().Redo(ctx)
	segs = eng.Segments()
	require.Len(t, segs, 2)
	require.Equal(t, merged.ID, segs[0].ID)
}

func TestMerge_UndoneNeighborsMergeAgain(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "first", 0, 1000)
	b := addSegment(t, eng, "second", 1000, 2000)
	c := addSegment(t, eng, "third", 2000, 3000)

	_, err := eng.Merge(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	eng.History().Undo(ctx)

	// Undo must leave b and c on distinct adjacent indexes so a second
	// merge along the timeline still works.
	remerged, err := eng.Merge(ctx, []string{b.ID, c.ID})
	require.NoError(t, err)
	require.Equal(t, "second third", remerged.TranslatedText)

	segs := eng.Segments()
	require.Equal(t, []string{a.ID, remerged.ID}, []string{segs[0].ID, segs[1].ID})
}

func TestUndo_ObserverCanReadHistoryFlags(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	seg := addSegment(t, eng, "hello", 0, 1000)

	text := "bonjour"
	_, err := eng.Update(ctx, seg.ID, store.SegmentPatch{TranslatedText: &text})
	require.NoError(t, err)

	// A UI observer refreshes its undo/redo buttons on every collection
	// change, including the reload triggered by the undo itself.
	var sawUndo, sawRedo bool
	eng.Subscribe(func() {
		sawUndo = eng.History().CanUndo()
		sawRedo = eng.History().CanRedo()
	})

	eng.History().Undo(ctx)

	require.False(t, sawUndo)
	require.True(t, sawRedo)
	got, ok := eng.Segment(seg.ID)
	require.True(t, ok)
	require.Equal(t, "hello", got.TranslatedText)
}

func TestMerge_NonContiguousLeavesStateUntouched(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "first", 0, 1000)
	addSegment(t, eng, "middle", 1000, 2000)
	c := addSegment(t, eng, "third", 2000, 3000)

	_, err := eng.Merge(ctx, []string{a.ID, c.ID})
	require.ErrorIs(t, err, common.ErrValidation)
	require.Len(t, eng.Segments(), 3)
	require.False(t, eng.History().CanUndo())
}

func TestMerge_RequiresTwoSegments(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := addSegment(t, eng, "only", 0, 1000)

	_, err := eng.Merge(context.Background(), []string{a.ID})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestBatchUpdate_NoHistoryEntry(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "one", 0, 1000)
	b := addSegment(t, eng, "two", 1000, 2000)

	s1, s2 := int64(100), int64(1100)
	err := eng.BatchUpdate(ctx, []store.SegmentUpdate{
		{ID: a.ID, Patch: store.SegmentPatch{StartTimeMs: &s1}},
		{ID: b.ID, Patch: store.SegmentPatch{StartTimeMs: &s2}},
	})
	require.NoError(t, err)

	got, _ := eng.Segment(a.ID)
	require.Equal(t, int64(100), got.StartTimeMs)
	require.False(t, eng.History().CanUndo(), "batch edits are not undoable")
}

func TestReorder_ReprojectsAndSkipsUnknown(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "one", 0, 1000)
	b := addSegment(t, eng, "two", 1000, 2000)
	c := addSegment(t, eng, "three", 2000, 3000)

	require.NoError(t, eng.Reorder(ctx, "p1", []string{b.ID, "ghost", c.ID, a.ID}))
	segs := eng.Segments()
	require.Equal(t, []string{b.ID, c.ID, a.ID},
		[]string{segs[0].ID, segs[1].ID, segs[2].ID})
}

func TestSelectRange_SymmetricAndEmptyOnMissing(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := addSegment(t, eng, "one", 0, 1000)
	b := addSegment(t, eng, "two", 1000, 2000)
	c := addSegment(t, eng, "three", 2000, 3000)

	eng.SelectRange(a.ID, c.ID)
	forward := eng.SelectedIDs()
	eng.SelectRange(c.ID, a.ID)
	backward := eng.SelectedIDs()
	require.Equal(t, []string{a.ID, b.ID, c.ID}, forward)
	require.Equal(t, forward, backward)

	eng.SelectRange(a.ID, "ghost")
	require.Empty(t, eng.SelectedIDs(), "missing endpoint empties selection")
}

func TestToggleSelect(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := addSegment(t, eng, "one", 0, 1000)
	b := addSegment(t, eng, "two", 1000, 2000)

	eng.ToggleSelect(a.ID)
	eng.ToggleSelect(b.ID)
	require.Equal(t, []string{a.ID, b.ID}, eng.SelectedIDs())

	eng.ToggleSelect(a.ID)
	require.Equal(t, []string{b.ID}, eng.SelectedIDs())
	require.False(t, eng.Selected(a.ID))

	eng.ToggleSelect("ghost")
	require.Equal(t, []string{b.ID}, eng.SelectedIDs())
}

func TestDelete_PrunesSelection(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "one", 0, 1000)

	eng.Select(a.ID)
	require.NoError(t, eng.Delete(ctx, a.ID))
	require.Empty(t, eng.SelectedIDs())
}

func TestRegenerateOne_WritesProvenanceSnapshot(t *testing.T) {
	eng, synth := newTestEngine(t)
	ctx := context.Background()

	sp, err := eng.CreateSpeaker(ctx, "Narrator", "voice-7", "")
	require.NoError(t, err)

	seg, err := eng.Create(ctx, store.CreateSegmentInput{
		ProjectID: "p1", StartTimeMs: 0, EndTimeMs: 2000,
		TranslatedText: "hello there", SpeakerID: sp.ID,
	})
	require.NoError(t, err)
	require.True(t, seg.IsStale(), "no audio yet")

	updated, err := eng.RegenerateOne(ctx, seg.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusReady, updated.Status)
	require.NotEmpty(t, updated.AudioFilePath)
	require.Equal(t, int64(1200), updated.AudioDurationMs)
	require.Equal(t, "voice-7", updated.AudioGeneratedVoiceID, "speaker default resolved")
	require.NotNil(t, updated.AudioGeneratedAt)
	require.NotNil(t, updated.AudioGeneratedDurationMs)
	require.Equal(t, int64(2000), *updated.AudioGeneratedDurationMs)
	require.False(t, updated.IsStale(), "fresh right after generation")

	require.Len(t, synth.calls, 1)
	require.Equal(t, "hello there", synth.calls[0].Text)
	require.Equal(t, "voice-7", synth.calls[0].VoiceID)

	// Provenance writes bypass history.
	require.False(t, eng.History().CanUndo())
}

func TestRegenerateOne_NoVoiceResolvable(t *testing.T) {
	eng, synth := newTestEngine(t)
	seg := addSegment(t, eng, "unvoiced", 0, 1000)

	_, err := eng.RegenerateOne(context.Background(), seg.ID)
	require.ErrorIs(t, err, common.ErrNoVoice)
	require.Empty(t, synth.calls)
}

func TestRegenerateOne_SynthFailureRecordsError(t *testing.T) {
	eng, synth := newTestEngine(t)
	ctx := context.Background()

	seg, err := eng.Create(ctx, store.CreateSegmentInput{
		ProjectID: "p1", StartTimeMs: 0, EndTimeMs: 1000,
		TranslatedText: "boom", VoiceID: "v1",
	})
	require.NoError(t, err)
	synth.failOn[seg.ID] = errors.New("tts unavailable")

	_, err = eng.RegenerateOne(ctx, seg.ID)
	require.Error(t, err)

	got, _ := eng.Segment(seg.ID)
	require.Equal(t, models.StatusError, got.Status)
	require.Contains(t, got.GenerationError, "tts unavailable")
}

func TestRegenerateAllStale_ProgressAndSkip(t *testing.T) {
	eng, synth := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := eng.Create(ctx, store.CreateSegmentInput{
			ProjectID:      "p1",
			StartTimeMs:    int64(i * 1000),
			EndTimeMs:      int64(i*1000 + 1000),
			TranslatedText: fmt.Sprintf("line %d", i),
			VoiceID:        "v1",
		})
		require.NoError(t, err)
	}
	addSegment(t, eng, "voiceless", 3000, 4000)

	var progress []Progress
	err := eng.RegenerateAllStale(ctx, func(p Progress) { progress = append(progress, p) })
	require.NoError(t, err)

	require.Equal(t, []Progress{{1, 3}, {2, 3}, {3, 3}}, progress,
		"voiceless segment excluded from the total")
	require.Len(t, synth.calls, 3)
	require.Len(t, eng.StaleSegments(), 1, "only the voiceless one remains stale")
}

func TestRegenerateAllStale_FailFast(t *testing.T) {
	eng, synth := newTestEngine(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		seg, err := eng.Create(ctx, store.CreateSegmentInput{
			ProjectID:      "p1",
			StartTimeMs:    int64(i * 1000),
			EndTimeMs:      int64(i*1000 + 1000),
			TranslatedText: fmt.Sprintf("line %d", i),
			VoiceID:        "v1",
		})
		require.NoError(t, err)
		ids = append(ids, seg.ID)
	}
	synth.failOn[ids[1]] = errors.New("tts unavailable")

	var progress []Progress
	err := eng.RegenerateAllStale(ctx, func(p Progress) { progress = append(progress, p) })
	require.Error(t, err)
	require.Equal(t, []Progress{{1, 3}}, progress, "no progress after the failure")
	require.Len(t, synth.calls, 2, "third segment never attempted")
}

func TestStaleness_TracksTextEdits(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	seg, err := eng.Create(ctx, store.CreateSegmentInput{
		ProjectID: "p1", StartTimeMs: 0, EndTimeMs: 1000,
		TranslatedText: "original", VoiceID: "v1",
	})
	require.NoError(t, err)

	_, err = eng.RegenerateOne(ctx, seg.ID)
	require.NoError(t, err)
	require.Empty(t, eng.StaleSegments())

	text := "edited"
	_, err = eng.Update(ctx, seg.ID, store.SegmentPatch{TranslatedText: &text})
	require.NoError(t, err)

	stale := eng.StaleSegments()
	require.Len(t, stale, 1)
	require.Equal(t, seg.ID, stale[0].ID)

	// Undoing the edit makes the audio match again.
	eng.History().Undo(ctx)
	require.Empty(t, eng.StaleSegments())
}

func TestOpenProject_ResetsStateBetweenProjects(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addSegment(t, eng, "one", 0, 1000)
	eng.Select(a.ID)

	require.NoError(t, eng.OpenProject(ctx, "p2"))
	require.Empty(t, eng.Segments())
	require.Empty(t, eng.SelectedIDs())
	require.Equal(t, "p2", eng.ProjectID())
	require.False(t, eng.History().CanUndo())
}

func TestCloseProject_DropsEverything(t *testing.T) {
	eng, _ := newTestEngine(t)
	addSegment(t, eng, "one", 0, 1000)

	eng.CloseProject()
	require.Empty(t, eng.ProjectID())
	require.Empty(t, eng.Segments())

	_, err := eng.Create(context.Background(), store.CreateSegmentInput{
		ProjectID: "p1", StartTimeMs: 0, EndTimeMs: 1000, TranslatedText: "x",
	})
	require.ErrorIs(t, err, common.ErrValidation)
}
