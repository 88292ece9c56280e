package editor

import (
	"context"
	"strings"

	"github.com/okoshkin/dubedit/internal/importer"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
)

// Import creates segments from parsed rows, resolving speaker names to
// speakers (creating missing ones with palette colors). Imported segments
// anchor their original timing to the imported times. Import records no
// history; a fresh import is not undoable.
func (e *Engine) Import(ctx context.Context, rows []importer.Row) ([]models.Segment, error) {
	if err := e.requireProject(); err != nil {
		return nil, err
	}

	var created []models.Segment
	for _, row := range rows {
		var speakerID string
		if row.SpeakerName != "" {
			sp, ok := e.SpeakerByName(row.SpeakerName)
			if !ok {
				var err error
				sp, err = e.CreateSpeaker(ctx, row.SpeakerName, "", "")
				if err != nil {
					return created, err
				}
			}
			speakerID = sp.ID
		}

		translated := row.TranslatedText
		if strings.TrimSpace(translated) == "" {
			// Imports may carry source text only; translation comes later.
			translated = row.OriginalText
		}
		if strings.TrimSpace(translated) == "" {
			continue
		}

		seg, err := e.Create(ctx, store.CreateSegmentInput{
			ProjectID:           e.projectID,
			StartTimeMs:         row.StartMs,
			EndTimeMs:           row.EndMs,
			OriginalStartTimeMs: row.StartMs,
			OriginalEndTimeMs:   row.EndMs,
			OriginalText:        row.OriginalText,
			TranslatedText:      translated,
			SpeakerID:           speakerID,
		})
		if err != nil {
			return created, err
		}
		created = append(created, seg)
	}
	return created, nil
}
