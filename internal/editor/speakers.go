package editor

import (
	"context"
	"fmt"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
)

// Speakers returns a copy of the speaker collection.
func (e *Engine) Speakers() []models.Speaker {
	out := make([]models.Speaker, len(e.speakers))
	copy(out, e.speakers)
	return out
}

// SpeakerByID resolves a segment's soft speaker reference. A dangling id
// (speaker deleted) resolves to not-found, never to a stale object.
func (e *Engine) SpeakerByID(id string) (models.Speaker, bool) {
	if id == "" {
		return models.Speaker{}, false
	}
	for i := range e.speakers {
		if e.speakers[i].ID == id {
			return e.speakers[i], true
		}
	}
	return models.Speaker{}, false
}

// SpeakerByName finds a speaker by exact name.
func (e *Engine) SpeakerByName(name string) (models.Speaker, bool) {
	for i := range e.speakers {
		if e.speakers[i].Name == name {
			return e.speakers[i], true
		}
	}
	return models.Speaker{}, false
}

// CreateSpeaker adds a speaker; when no color is given one is assigned
// round-robin from the palette, avoiding colors already in use.
func (e *Engine) CreateSpeaker(ctx context.Context, name, defaultVoiceID, color string) (models.Speaker, error) {
	if err := e.requireProject(); err != nil {
		return models.Speaker{}, err
	}
	if name == "" {
		return models.Speaker{}, fmt.Errorf("speaker name required: %w", common.ErrValidation)
	}
	if color == "" {
		color = models.NextSpeakerColor(e.speakers)
	}

	sp, err := e.spkStore.Create(ctx, store.CreateSpeakerInput{
		ProjectID:      e.projectID,
		Name:           name,
		DefaultVoiceID: defaultVoiceID,
		Color:          color,
	})
	if err != nil {
		return models.Speaker{}, err
	}

	e.speakers = append(e.speakers, sp)
	return sp, nil
}

// UpdateSpeaker applies a partial update to one speaker.
func (e *Engine) UpdateSpeaker(ctx context.Context, id string, patch store.SpeakerPatch) (models.Speaker, error) {
	sp, err := e.spkStore.Update(ctx, id, patch)
	if err != nil {
		return models.Speaker{}, err
	}
	for i := range e.speakers {
		if e.speakers[i].ID == id {
			e.speakers[i] = sp
			break
		}
	}
	return sp, nil
}

// DeleteSpeaker removes a speaker. Segments keep their dangling speakerId;
// no cascade.
func (e *Engine) DeleteSpeaker(ctx context.Context, id string) error {
	if err := e.spkStore.Delete(ctx, id); err != nil {
		return err
	}
	for i := range e.speakers {
		if e.speakers[i].ID == id {
			e.speakers = append(e.speakers[:i], e.speakers[i+1:]...)
			break
		}
	}
	return nil
}
