// Package store declares the backing-store contracts the edit and history
// engines are written against. Implementations persist segments, speakers
// and undo/redo history; the engines own the in-memory collections.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/okoshkin/dubedit/internal/models"
)

// CreateSegmentInput carries the fields required to create a segment.
// When the original timing anchors are zero they default to the dubbed
// timing, which is correct for freshly imported segments.
type CreateSegmentInput struct {
	ProjectID           string
	StartTimeMs         int64
	EndTimeMs           int64
	OriginalStartTimeMs int64
	OriginalEndTimeMs   int64
	OriginalText        string
	TranslatedText      string
	SpeakerID           string
	VoiceID             string
}

// SegmentPatch is a partial update; nil fields are left untouched.
// The original timing anchors are deliberately absent: they are immutable
// after creation.
type SegmentPatch struct {
	StartTimeMs    *int64
	EndTimeMs      *int64
	OriginalText   *string
	TranslatedText *string
	SpeakerID      *string
	VoiceID        *string

	SpeedAdjustment *float64
	PitchAdjustment *float64

	AudioFilePath            *string
	AudioDurationMs          *int64
	AudioGeneratedAt         *time.Time
	TranslatedTextHash       *string
	AudioGeneratedVoiceID    *string
	AudioGeneratedDurationMs *int64

	Status          *models.SegmentStatus
	GenerationError *string

	OrderIndex *int
}

// Apply merges the patch into s, leaving nil fields unchanged.
func (p SegmentPatch) Apply(s *models.Segment) {
	if p.StartTimeMs != nil {
		s.StartTimeMs = *p.StartTimeMs
	}
	if p.EndTimeMs != nil {
		s.EndTimeMs = *p.EndTimeMs
	}
	if p.OriginalText != nil {
		s.OriginalText = *p.OriginalText
	}
	if p.TranslatedText != nil {
		s.TranslatedText = *p.TranslatedText
	}
	if p.SpeakerID != nil {
		s.SpeakerID = *p.SpeakerID
	}
	if p.VoiceID != nil {
		s.VoiceID = *p.VoiceID
	}
	if p.SpeedAdjustment != nil {
		s.SpeedAdjustment = *p.SpeedAdjustment
	}
	if p.PitchAdjustment != nil {
		s.PitchAdjustment = *p.PitchAdjustment
	}
	if p.AudioFilePath != nil {
		s.AudioFilePath = *p.AudioFilePath
	}
	if p.AudioDurationMs != nil {
		s.AudioDurationMs = *p.AudioDurationMs
	}
	if p.AudioGeneratedAt != nil {
		t := *p.AudioGeneratedAt
		s.AudioGeneratedAt = &t
	}
	if p.TranslatedTextHash != nil {
		s.TranslatedTextHash = *p.TranslatedTextHash
	}
	if p.AudioGeneratedVoiceID != nil {
		s.AudioGeneratedVoiceID = *p.AudioGeneratedVoiceID
	}
	if p.AudioGeneratedDurationMs != nil {
		d := *p.AudioGeneratedDurationMs
		s.AudioGeneratedDurationMs = &d
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.GenerationError != nil {
		s.GenerationError = *p.GenerationError
	}
	if p.OrderIndex != nil {
		s.OrderIndex = *p.OrderIndex
	}
}

// SegmentUpdate pairs a segment id with the patch to apply to it.
type SegmentUpdate struct {
	ID    string
	Patch SegmentPatch
}

// SegmentStore persists the segment collection for a project.
type SegmentStore interface {
	GetAll(ctx context.Context, projectID string) ([]models.Segment, error)
	Create(ctx context.Context, in CreateSegmentInput) (models.Segment, error)
	Update(ctx context.Context, id string, patch SegmentPatch) (models.Segment, error)
	Delete(ctx context.Context, id string) error

	// BatchUpdate applies all patches in one round trip and returns the
	// updated segments. Segments absent from the result were not touched.
	BatchUpdate(ctx context.Context, updates []SegmentUpdate) ([]models.Segment, error)

	// Split divides the segment at atMs, which must fall strictly inside
	// its time range. The first returned half keeps the original id.
	Split(ctx context.Context, id string, atMs int64) ([2]models.Segment, error)

	// Merge combines the given segments into one. Implementations decide
	// result ordering and may require members to be contiguous.
	Merge(ctx context.Context, ids []string) (models.Segment, error)

	// Reorder persists the given id order for the project.
	Reorder(ctx context.Context, projectID string, idOrder []string) error
}

// CreateSpeakerInput carries the fields required to create a speaker.
type CreateSpeakerInput struct {
	ProjectID      string
	Name           string
	DefaultVoiceID string
	Color          string
}

// SpeakerPatch is a partial speaker update; nil fields are left untouched.
type SpeakerPatch struct {
	Name           *string
	DefaultVoiceID *string
	Color          *string
}

// SpeakerStore persists the speaker collection for a project.
type SpeakerStore interface {
	GetAll(ctx context.Context, projectID string) ([]models.Speaker, error)
	Create(ctx context.Context, in CreateSpeakerInput) (models.Speaker, error)
	Update(ctx context.Context, id string, patch SpeakerPatch) (models.Speaker, error)
	Delete(ctx context.Context, id string) error
}

// EntryInput is a history entry to record.
type EntryInput struct {
	ActionType models.ActionType
	UndoData   json.RawMessage
	RedoData   json.RawMessage
}

// StackState reports whether further undo/redo is possible. Flags are
// optional: a nil flag means the store did not say, and the caller must
// pick a default.
type StackState struct {
	CanUndo *bool
	CanRedo *bool
}

// HistoryStore persists the per-project undo/redo stacks and applies
// inverse payloads to segment data on undo/redo.
type HistoryStore interface {
	Record(ctx context.Context, projectID string, entry EntryInput) (StackState, error)
	Undo(ctx context.Context, projectID string) (StackState, error)
	Redo(ctx context.Context, projectID string) (StackState, error)
	GetStack(ctx context.Context, projectID string) (StackState, error)
	Clear(ctx context.Context, projectID string) error
}
