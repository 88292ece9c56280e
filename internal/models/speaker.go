package models

import "time"

// Speaker is a named voice profile segments may reference for a default
// voice and a UI color tag.
type Speaker struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"projectId"`
	Name           string    `json:"name"`
	DefaultVoiceID string    `json:"defaultVoiceId,omitempty"`
	Color          string    `json:"color"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SpeakerPalette is the fixed set of UI tag colors assigned to new speakers.
var SpeakerPalette = []string{
	"#ef4444", // red
	"#f59e0b", // amber
	"#10b981", // emerald
	"#3b82f6", // blue
	"#8b5cf6", // violet
	"#ec4899", // pink
	"#14b8a6", // teal
	"#f97316", // orange
}

// NextSpeakerColor picks the first palette color not yet used by existing
// speakers; once the palette is exhausted it cycles by speaker count.
func NextSpeakerColor(existing []Speaker) string {
	used := make(map[string]bool, len(existing))
	for _, sp := range existing {
		used[sp.Color] = true
	}
	for _, c := range SpeakerPalette {
		if !used[c] {
			return c
		}
	}
	return SpeakerPalette[len(existing)%len(SpeakerPalette)]
}
