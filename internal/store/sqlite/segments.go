package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/dbx"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
)

const segmentColumns = `id, project_id, order_index, start_time_ms, end_time_ms,
	original_start_time_ms, original_end_time_ms, original_text, translated_text,
	speaker_id, voice_id, speed_adjustment, pitch_adjustment,
	audio_file_path, audio_duration_ms, audio_generated_at, translated_text_hash,
	audio_generated_voice_id, audio_generated_duration_ms,
	status, generation_error, created_at, updated_at`

// SegmentStore implements store.SegmentStore on SQLite.
type SegmentStore struct {
	db *sql.DB
}

func NewSegmentStore(db *sql.DB) *SegmentStore {
	return &SegmentStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row rowScanner) (models.Segment, error) {
	var s models.Segment
	var genAt sql.NullTime
	var genDur sql.NullInt64

	err := row.Scan(
		&s.ID, &s.ProjectID, &s.OrderIndex, &s.StartTimeMs, &s.EndTimeMs,
		&s.OriginalStartTimeMs, &s.OriginalEndTimeMs, &s.OriginalText, &s.TranslatedText,
		&s.SpeakerID, &s.VoiceID, &s.SpeedAdjustment, &s.PitchAdjustment,
		&s.AudioFilePath, &s.AudioDurationMs, &genAt, &s.TranslatedTextHash,
		&s.AudioGeneratedVoiceID, &genDur,
		&s.Status, &s.GenerationError, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return models.Segment{}, err
	}

	if genAt.Valid {
		t := genAt.Time
		s.AudioGeneratedAt = &t
	}
	if genDur.Valid {
		d := genDur.Int64
		s.AudioGeneratedDurationMs = &d
	}
	return s, nil
}

func segmentArgs(s models.Segment) []any {
	var genAt sql.NullTime
	if s.AudioGeneratedAt != nil {
		genAt = sql.NullTime{Time: *s.AudioGeneratedAt, Valid: true}
	}
	var genDur sql.NullInt64
	if s.AudioGeneratedDurationMs != nil {
		genDur = sql.NullInt64{Int64: *s.AudioGeneratedDurationMs, Valid: true}
	}
	return []any{
		s.ID, s.ProjectID, s.OrderIndex, s.StartTimeMs, s.EndTimeMs,
		s.OriginalStartTimeMs, s.OriginalEndTimeMs, s.OriginalText, s.TranslatedText,
		s.SpeakerID, s.VoiceID, s.SpeedAdjustment, s.PitchAdjustment,
		s.AudioFilePath, s.AudioDurationMs, genAt, s.TranslatedTextHash,
		s.AudioGeneratedVoiceID, genDur,
		s.Status, s.GenerationError, s.CreatedAt, s.UpdatedAt,
	}
}

func insertSegment(ctx context.Context, db dbx.DBTX, s models.Segment) error {
	query := `INSERT INTO segments (` + segmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, segmentArgs(s)...); err != nil {
		return fmt.Errorf("failed to insert segment: %w", err)
	}
	return nil
}

func writeFullSegment(ctx context.Context, db dbx.DBTX, s models.Segment) error {
	// Upsert so restoring a deleted segment and overwriting an existing one
	// go through the same path.
	query := `INSERT INTO segments (` + segmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			order_index = excluded.order_index,
			start_time_ms = excluded.start_time_ms,
			end_time_ms = excluded.end_time_ms,
			original_start_time_ms = excluded.original_start_time_ms,
			original_end_time_ms = excluded.original_end_time_ms,
			original_text = excluded.original_text,
			translated_text = excluded.translated_text,
			speaker_id = excluded.speaker_id,
			voice_id = excluded.voice_id,
			speed_adjustment = excluded.speed_adjustment,
			pitch_adjustment = excluded.pitch_adjustment,
			audio_file_path = excluded.audio_file_path,
			audio_duration_ms = excluded.audio_duration_ms,
			audio_generated_at = excluded.audio_generated_at,
			translated_text_hash = excluded.translated_text_hash,
			audio_generated_voice_id = excluded.audio_generated_voice_id,
			audio_generated_duration_ms = excluded.audio_generated_duration_ms,
			status = excluded.status,
			generation_error = excluded.generation_error,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, segmentArgs(s)...); err != nil {
		return fmt.Errorf("failed to write segment: %w", err)
	}
	return nil
}

func getSegment(ctx context.Context, db dbx.DBTX, id string) (models.Segment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id)
	s, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return models.Segment{}, fmt.Errorf("failed to select segment: %w", err)
	}
	return s, nil
}

// GetAll lists all segments of a project in persisted order.
func (r *SegmentStore) GetAll(ctx context.Context, projectID string) ([]models.Segment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments
		 WHERE project_id = ? ORDER BY order_index, start_time_ms`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to select segments: %w", err)
	}
	defer rows.Close()

	var result []models.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts a new segment at the end of the project's order.
func (r *SegmentStore) Create(ctx context.Context, in store.CreateSegmentInput) (models.Segment, error) {
	if in.ProjectID == "" {
		return models.Segment{}, fmt.Errorf("project id required: %w", common.ErrValidation)
	}
	if in.EndTimeMs <= in.StartTimeMs {
		return models.Segment{}, fmt.Errorf("end time must be after start time: %w", common.ErrValidation)
	}

	origStart, origEnd := in.OriginalStartTimeMs, in.OriginalEndTimeMs
	if origStart == 0 && origEnd == 0 {
		origStart, origEnd = in.StartTimeMs, in.EndTimeMs
	}

	var s models.Segment
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var next int
		row := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index) + 1, 0) FROM segments WHERE project_id = ?`, in.ProjectID)
		if err := row.Scan(&next); err != nil {
			return fmt.Errorf("failed to compute order index: %w", err)
		}

		now := time.Now().UTC()
		s = models.Segment{
			ID:                  uuid.NewString(),
			ProjectID:           in.ProjectID,
			OrderIndex:          next,
			StartTimeMs:         in.StartTimeMs,
			EndTimeMs:           in.EndTimeMs,
			OriginalStartTimeMs: origStart,
			OriginalEndTimeMs:   origEnd,
			OriginalText:        in.OriginalText,
			TranslatedText:      in.TranslatedText,
			SpeakerID:           in.SpeakerID,
			VoiceID:             in.VoiceID,
			SpeedAdjustment:     1.0,
			Status:              models.StatusPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		return insertSegment(ctx, tx, s)
	})
	if err != nil {
		return models.Segment{}, err
	}
	return s, nil
}

// Update applies a partial update and returns the updated segment.
func (r *SegmentStore) Update(ctx context.Context, id string, patch store.SegmentPatch) (models.Segment, error) {
	var updated models.Segment
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s, err := getSegment(ctx, tx, id)
		if err != nil {
			return err
		}
		patch.Apply(&s)
		if s.EndTimeMs <= s.StartTimeMs {
			return fmt.Errorf("end time must be after start time: %w", common.ErrValidation)
		}
		s.UpdatedAt = time.Now().UTC()
		if err := writeFullSegment(ctx, tx, s); err != nil {
			return err
		}
		updated = s
		return nil
	})
	if err != nil {
		return models.Segment{}, err
	}
	return updated, nil
}

// Delete removes a segment. Deleting an absent id fails with ErrNotFound.
func (r *SegmentStore) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// BatchUpdate applies all patches in one transaction. Ids absent from the
// database are skipped; the result contains only segments actually updated.
func (r *SegmentStore) BatchUpdate(ctx context.Context, updates []store.SegmentUpdate) ([]models.Segment, error) {
	var result []models.Segment
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, u := range updates {
			s, err := getSegment(ctx, tx, u.ID)
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			u.Patch.Apply(&s)
			if s.EndTimeMs <= s.StartTimeMs {
				return fmt.Errorf("segment %s: end time must be after start time: %w", u.ID, common.ErrValidation)
			}
			s.UpdatedAt = time.Now().UTC()
			if err := writeFullSegment(ctx, tx, s); err != nil {
				return err
			}
			result = append(result, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Split divides a segment at atMs. The first half keeps the original id and
// start; the second half is newly identified and starts at atMs. Later
// segments shift one order index up to make room.
func (r *SegmentStore) Split(ctx context.Context, id string, atMs int64) ([2]models.Segment, error) {
	var out [2]models.Segment
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s, err := getSegment(ctx, tx, id)
		if err != nil {
			return err
		}
		if atMs <= s.StartTimeMs || atMs >= s.EndTimeMs {
			return fmt.Errorf("split point %d outside (%d, %d): %w",
				atMs, s.StartTimeMs, s.EndTimeMs, common.ErrValidation)
		}

		now := time.Now().UTC()

		first := s
		first.EndTimeMs = atMs
		first.UpdatedAt = now

		// Text, voice and speaker duplicate onto both halves; the caller
		// re-edits text afterwards. The second half starts with no audio.
		second := models.Segment{
			ID:                  uuid.NewString(),
			ProjectID:           s.ProjectID,
			OrderIndex:          s.OrderIndex + 1,
			StartTimeMs:         atMs,
			EndTimeMs:           s.EndTimeMs,
			OriginalStartTimeMs: s.OriginalStartTimeMs,
			OriginalEndTimeMs:   s.OriginalEndTimeMs,
			OriginalText:        s.OriginalText,
			TranslatedText:      s.TranslatedText,
			SpeakerID:           s.SpeakerID,
			VoiceID:             s.VoiceID,
			SpeedAdjustment:     s.SpeedAdjustment,
			PitchAdjustment:     s.PitchAdjustment,
			Status:              models.StatusPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE segments SET order_index = order_index + 1
			 WHERE project_id = ? AND order_index > ?`, s.ProjectID, s.OrderIndex)
		if err != nil {
			return fmt.Errorf("failed to shift order indexes: %w", err)
		}

		if err := writeFullSegment(ctx, tx, first); err != nil {
			return err
		}
		if err := insertSegment(ctx, tx, second); err != nil {
			return err
		}

		out = [2]models.Segment{first, second}
		return nil
	})
	if err != nil {
		return [2]models.Segment{}, err
	}
	return out, nil
}

// checkAdjacent verifies that ids form one contiguous run in the project's
// current segment order.
func checkAdjacent(ctx context.Context, tx dbx.DBTX, projectID string, ids []string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM segments WHERE project_id = ? ORDER BY order_index, start_time_ms`, projectID)
	if err != nil {
		return fmt.Errorf("failed to select segment order: %w", err)
	}
	defer rows.Close()

	rank := make(map[string]int)
	n := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		rank[id] = n
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	ranks := make([]int, 0, len(ids))
	for _, id := range ids {
		r, ok := rank[id]
		if !ok {
			return fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
		}
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	for i := 1; i < len(ranks); i++ {
		if ranks[i] != ranks[i-1]+1 {
			return fmt.Errorf("merge members must be contiguous: %w", common.ErrValidation)
		}
	}
	return nil
}

// Merge combines segments adjacent in the project's current order into one
// new segment spanning their combined range. Text joins in start-time
// order; speaker, voice and adjustments copy from the earliest member.
func (r *SegmentStore) Merge(ctx context.Context, ids []string) (models.Segment, error) {
	if len(ids) < 2 {
		return models.Segment{}, fmt.Errorf("merge needs at least two segments: %w", common.ErrValidation)
	}

	var merged models.Segment
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		members := make([]models.Segment, 0, len(ids))
		for _, id := range ids {
			s, err := getSegment(ctx, tx, id)
			if err != nil {
				return err
			}
			members = append(members, s)
		}

		project := members[0].ProjectID
		for _, m := range members[1:] {
			if m.ProjectID != project {
				return fmt.Errorf("segments belong to different projects: %w", common.ErrValidation)
			}
		}

		sort.Slice(members, func(i, j int) bool { return members[i].OrderIndex < members[j].OrderIndex })

		// Contiguity is checked by rank in the project's current order, not
		// by raw index arithmetic: deletions and undone merges may leave
		// gaps or duplicates in order_index values, and segments that are
		// visibly adjacent must stay mergeable.
		if err := checkAdjacent(ctx, tx, project, ids); err != nil {
			return err
		}

		byStart := make([]models.Segment, len(members))
		copy(byStart, members)
		sort.Slice(byStart, func(i, j int) bool { return byStart[i].StartTimeMs < byStart[j].StartTimeMs })

		var origTexts, transTexts []string
		start, end := byStart[0].StartTimeMs, byStart[0].EndTimeMs
		origStart, origEnd := byStart[0].OriginalStartTimeMs, byStart[0].OriginalEndTimeMs
		for _, m := range byStart {
			if m.StartTimeMs < start {
				start = m.StartTimeMs
			}
			if m.EndTimeMs > end {
				end = m.EndTimeMs
			}
			if m.OriginalStartTimeMs < origStart {
				origStart = m.OriginalStartTimeMs
			}
			if m.OriginalEndTimeMs > origEnd {
				origEnd = m.OriginalEndTimeMs
			}
			if t := strings.TrimSpace(m.OriginalText); t != "" {
				origTexts = append(origTexts, t)
			}
			if t := strings.TrimSpace(m.TranslatedText); t != "" {
				transTexts = append(transTexts, t)
			}
		}

		earliest := byStart[0]
		now := time.Now().UTC()
		merged = models.Segment{
			ID:                  uuid.NewString(),
			ProjectID:           project,
			OrderIndex:          members[0].OrderIndex,
			StartTimeMs:         start,
			EndTimeMs:           end,
			OriginalStartTimeMs: origStart,
			OriginalEndTimeMs:   origEnd,
			OriginalText:        strings.Join(origTexts, " "),
			TranslatedText:      strings.Join(transTexts, " "),
			SpeakerID:           earliest.SpeakerID,
			VoiceID:             earliest.VoiceID,
			SpeedAdjustment:     earliest.SpeedAdjustment,
			PitchAdjustment:     earliest.PitchAdjustment,
			Status:              models.StatusPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		for _, m := range members {
			if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, m.ID); err != nil {
				return fmt.Errorf("failed to delete merged member: %w", err)
			}
		}

		shift := len(members) - 1
		_, err := tx.ExecContext(ctx,
			`UPDATE segments SET order_index = order_index - ?
			 WHERE project_id = ? AND order_index > ?`,
			shift, project, members[len(members)-1].OrderIndex)
		if err != nil {
			return fmt.Errorf("failed to shift order indexes: %w", err)
		}

		return insertSegment(ctx, tx, merged)
	})
	if err != nil {
		return models.Segment{}, err
	}
	return merged, nil
}

// Reorder persists the given id order. Ids not found are skipped.
func (r *SegmentStore) Reorder(ctx context.Context, projectID string, idOrder []string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for i, id := range idOrder {
			_, err := tx.ExecContext(ctx,
				`UPDATE segments SET order_index = ?, updated_at = ?
				 WHERE id = ? AND project_id = ?`,
				i, time.Now().UTC(), id, projectID)
			if err != nil {
				return fmt.Errorf("failed to reorder segment: %w", err)
			}
		}
		return nil
	})
}
