// Package models defines the segment, speaker and history-entry types that
// make up the dubbing timeline, together with the derived staleness
// predicate.
package models

import (
	"strings"
	"time"

	"github.com/okoshkin/dubedit/internal/texthash"
)

// SegmentStatus tracks the audio generation lifecycle of a segment.
type SegmentStatus string

const (
	StatusPending    SegmentStatus = "pending"
	StatusGenerating SegmentStatus = "generating"
	StatusReady      SegmentStatus = "ready"
	StatusError      SegmentStatus = "error"
)

// Segment is a time-ranged dialogue unit on the dubbed timeline.
//
// The audio provenance fields (AudioFilePath through AudioGeneratedDurationMs)
// are a snapshot taken when audio was last generated. Staleness is always
// computed from that snapshot, never stored.
type Segment struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	OrderIndex int    `json:"orderIndex"`

	// Dubbed timeline position. EndTimeMs > StartTimeMs always holds.
	StartTimeMs int64 `json:"startTimeMs"`
	EndTimeMs   int64 `json:"endTimeMs"`

	// Source timing anchors, never mutated after creation.
	OriginalStartTimeMs int64 `json:"originalStartTimeMs"`
	OriginalEndTimeMs   int64 `json:"originalEndTimeMs"`

	OriginalText   string `json:"originalText,omitempty"`
	TranslatedText string `json:"translatedText"`

	// SpeakerID is a soft reference; the speaker may have been deleted.
	SpeakerID string `json:"speakerId,omitempty"`
	// VoiceID overrides the speaker's default voice when set.
	VoiceID string `json:"voiceId,omitempty"`

	SpeedAdjustment float64 `json:"speedAdjustment"`
	PitchAdjustment float64 `json:"pitchAdjustment"`

	// Generated-audio provenance snapshot, set together on (re)generation.
	AudioFilePath            string     `json:"audioFilePath,omitempty"`
	AudioDurationMs          int64      `json:"audioDurationMs,omitempty"`
	AudioGeneratedAt         *time.Time `json:"audioGeneratedAt,omitempty"`
	TranslatedTextHash       string     `json:"translatedTextHash,omitempty"`
	AudioGeneratedVoiceID    string     `json:"audioGeneratedVoiceId,omitempty"`
	AudioGeneratedDurationMs *int64     `json:"audioGeneratedDurationMs,omitempty"`

	Status SegmentStatus `json:"status"`
	// GenerationError is populated only while Status == StatusError.
	GenerationError string `json:"generationError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DurationMs returns the current dubbed duration of the segment.
func (s *Segment) DurationMs() int64 {
	return s.EndTimeMs - s.StartTimeMs
}

// IsStale reports whether the segment's generated audio no longer matches
// its current text, voice or duration. Pure function of the segment.
//
// Absent provenance fields are treated as "unknown, assume stale" so the
// system biases toward regeneration; the only exception is empty translated
// text, which short-circuits to fresh because there is nothing to voice.
func (s *Segment) IsStale() bool {
	if strings.TrimSpace(s.TranslatedText) == "" {
		return false
	}
	if s.AudioFilePath == "" {
		return true
	}
	if s.TranslatedTextHash == "" {
		return true
	}
	if texthash.Sum(s.TranslatedText) != s.TranslatedTextHash {
		return true
	}
	if s.VoiceID != "" && s.AudioGeneratedVoiceID != "" && s.VoiceID != s.AudioGeneratedVoiceID {
		return true
	}
	if s.AudioGeneratedDurationMs != nil && *s.AudioGeneratedDurationMs != s.DurationMs() {
		return true
	}
	return false
}
