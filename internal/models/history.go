package models

import (
	"encoding/json"
	"time"
)

// ActionType tags the kind of mutation a history entry reverses.
type ActionType string

const (
	ActionSegmentCreate ActionType = "segment_create"
	ActionSegmentUpdate ActionType = "segment_update"
	ActionSegmentDelete ActionType = "segment_delete"
	ActionSegmentMerge  ActionType = "segment_merge"
)

// HistoryEntry is an inverse-operation descriptor. UndoData carries a
// payload sufficient to reverse the action, RedoData one sufficient to
// reapply it. Entries hold copies of segment data by value; they never
// alias live segment objects.
type HistoryEntry struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"projectId"`
	Seq        int64           `json:"seq"`
	ActionType ActionType      `json:"actionType"`
	UndoData   json.RawMessage `json:"undoData"`
	RedoData   json.RawMessage `json:"redoData"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// UpdateUndo and UpdateRedo are full before/after snapshots: one atomic
// undo step restores every field of the previous segment.
type UpdateUndo struct {
	Segment Segment `json:"segment"`
}

type UpdateRedo struct {
	Segment Segment `json:"segment"`
}

// DeleteUndo recreates the deleted segment; DeleteRedo deletes it again.
type DeleteUndo struct {
	Segment Segment `json:"segment"`
}

type DeleteRedo struct {
	SegmentID string `json:"segmentId"`
}

// MergeUndo removes the merged segment and recreates the originals, sorted
// by start time. MergeRedo removes the originals and recreates the merged
// segment.
type MergeUndo struct {
	Originals []Segment `json:"originals"`
	MergedID  string    `json:"mergedId"`
}

type MergeRedo struct {
	OriginalIDs []string `json:"originalIds"`
	Merged      Segment  `json:"merged"`
}

// CreateUndo deletes the created segment; CreateRedo recreates it.
type CreateUndo struct {
	SegmentID string `json:"segmentId"`
}

type CreateRedo struct {
	Segment Segment `json:"segment"`
}
