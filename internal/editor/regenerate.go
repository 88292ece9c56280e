package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
	"github.com/okoshkin/dubedit/internal/texthash"
	"github.com/okoshkin/dubedit/internal/voice"
)

// Progress reports how far a batch regeneration has advanced.
type Progress struct {
	Completed int
	Total     int
}

// ResolveVoice returns the effective voice for a segment: its own override
// first, otherwise the speaker's default. ErrNoVoice when neither resolves.
func (e *Engine) ResolveVoice(seg models.Segment) (string, error) {
	if seg.VoiceID != "" {
		return seg.VoiceID, nil
	}
	if sp, ok := e.SpeakerByID(seg.SpeakerID); ok && sp.DefaultVoiceID != "" {
		return sp.DefaultVoiceID, nil
	}
	return "", fmt.Errorf("segment %s: %w", seg.ID, common.ErrNoVoice)
}

// RegenerateOne synthesizes audio for a single segment and overwrites its
// provenance snapshot (path, duration, generation time, text hash, voice,
// segment duration) as one update. Provenance writes bypass history:
// regeneration is derived data, not an undoable edit.
func (e *Engine) RegenerateOne(ctx context.Context, id string) (models.Segment, error) {
	if e.synth == nil {
		return models.Segment{}, fmt.Errorf("no synthesizer configured: %w", common.ErrValidation)
	}
	i := e.indexOf(id)
	if i < 0 {
		return models.Segment{}, fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
	}
	seg := e.segments[i]

	voiceID, err := e.ResolveVoice(seg)
	if err != nil {
		return models.Segment{}, err
	}

	generating := models.StatusGenerating
	if updated, err := e.segStore.Update(ctx, id, store.SegmentPatch{Status: &generating}); err == nil {
		e.segments[i] = updated
		e.notify()
	} else {
		// Synthesis proceeds anyway; only the interim status is lost.
		e.log.Warn(ctx, "failed to mark segment generating", "segment", id, "error", err)
	}

	res, err := e.synth.GenerateSingle(ctx, voice.Request{
		ProjectID:       seg.ProjectID,
		SegmentID:       seg.ID,
		VoiceID:         voiceID,
		Text:            seg.TranslatedText,
		SpeedAdjustment: seg.SpeedAdjustment,
		PitchAdjustment: seg.PitchAdjustment,
	})
	if err != nil {
		failed := models.StatusError
		msg := err.Error()
		if updated, uerr := e.segStore.Update(ctx, id, store.SegmentPatch{
			Status:          &failed,
			GenerationError: &msg,
		}); uerr == nil {
			e.segments[i] = updated
			e.notify()
		} else {
			e.log.Warn(ctx, "failed to record generation error", "segment", id, "error", uerr)
		}
		return models.Segment{}, fmt.Errorf("generate audio for %s: %w", id, err)
	}

	now := time.Now().UTC()
	hash := texthash.Sum(seg.TranslatedText)
	segDur := seg.DurationMs()
	ready := models.StatusReady
	noError := ""

	updated, err := e.segStore.Update(ctx, id, store.SegmentPatch{
		AudioFilePath:            &res.AudioPath,
		AudioDurationMs:          &res.DurationMs,
		AudioGeneratedAt:         &now,
		TranslatedTextHash:       &hash,
		AudioGeneratedVoiceID:    &voiceID,
		AudioGeneratedDurationMs: &segDur,
		Status:                   &ready,
		GenerationError:          &noError,
	})
	if err != nil {
		return models.Segment{}, err
	}

	e.segments[i] = updated
	e.notify()
	return updated, nil
}

// RegenerateAllStale regenerates every currently-stale segment, one at a
// time. The stale set is computed once at call time, not re-evaluated
// mid-loop; segments with no resolvable voice are skipped up front. After
// each completed item the optional progress callback fires with
// {completed, total}. The first synthesis failure aborts the whole batch
// without further progress.
func (e *Engine) RegenerateAllStale(ctx context.Context, progress func(Progress)) error {
	stale := e.StaleSegments()

	var batch []models.Segment
	for _, seg := range stale {
		if _, err := e.ResolveVoice(seg); err != nil {
			e.log.Warn(ctx, "skipping stale segment without voice", "segment", seg.ID)
			continue
		}
		batch = append(batch, seg)
	}

	total := len(batch)
	for n, seg := range batch {
		if _, err := e.RegenerateOne(ctx, seg.ID); err != nil {
			return err
		}
		if progress != nil {
			progress(Progress{Completed: n + 1, Total: total})
		}
	}
	return nil
}
