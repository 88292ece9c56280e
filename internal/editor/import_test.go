package editor

import (
	"context"
	"testing"

	"github.com/okoshkin/dubedit/internal/importer"
	"github.com/stretchr/testify/require"
)

func TestImport_CreatesSegmentsAndSpeakers(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.Import(ctx, []importer.Row{
		{StartMs: 0, EndMs: 1500, OriginalText: "Hello", TranslatedText: "Bonjour", SpeakerName: "Narrator"},
		{StartMs: 1500, EndMs: 3000, OriginalText: "Bye", TranslatedText: "Au revoir", SpeakerName: "Narrator"},
		{StartMs: 3000, EndMs: 4000, OriginalText: "Hm", TranslatedText: "Hm", SpeakerName: "Guest"},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	require.Len(t, eng.Speakers(), 2, "repeated names resolve to one speaker")
	require.Equal(t, created[0].SpeakerID, created[1].SpeakerID)
	require.NotEqual(t, created[0].SpeakerID, created[2].SpeakerID)

	sp, ok := eng.SpeakerByName("Narrator")
	require.True(t, ok)
	require.NotEmpty(t, sp.Color, "auto-created speakers get a palette color")

	// Imported timing anchors the original times.
	require.Equal(t, int64(0), created[0].OriginalStartTimeMs)
	require.Equal(t, int64(1500), created[0].OriginalEndTimeMs)

	require.False(t, eng.History().CanUndo(), "imports are not undoable")
}

func TestImport_FallsBackToOriginalText(t *testing.T) {
	eng, _ := newTestEngine(t)

	created, err := eng.Import(context.Background(), []importer.Row{
		{StartMs: 0, EndMs: 1000, OriginalText: "source only"},
		{StartMs: 1000, EndMs: 2000}, // no text at all: skipped
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "source only", created[0].TranslatedText)
}

func TestImport_RequiresOpenProject(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.CloseProject()

	_, err := eng.Import(context.Background(), []importer.Row{
		{StartMs: 0, EndMs: 1000, TranslatedText: "x"},
	})
	require.Error(t, err)
}
