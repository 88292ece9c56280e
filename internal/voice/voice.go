// Package voice defines the speech-synthesis collaborator contract and an
// HTTP adapter for it. Actual synthesis is an external service.
package voice

import "context"

// Request asks for one segment's audio.
type Request struct {
	ProjectID string
	SegmentID string
	VoiceID   string
	Text      string

	SpeedAdjustment float64
	PitchAdjustment float64
}

// Result points at the generated audio file.
type Result struct {
	AudioPath  string
	DurationMs int64
}

// Synthesizer generates audio for a single segment. Calls may fail and are
// expected to be slow; implementations should honor ctx cancellation.
type Synthesizer interface {
	GenerateSingle(ctx context.Context, req Request) (Result, error)
}
