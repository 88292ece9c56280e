package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/models"
	"github.com/okoshkin/dubedit/internal/store"
)

// SpeakerStore implements store.SpeakerStore on SQLite.
type SpeakerStore struct {
	db *sql.DB
}

func NewSpeakerStore(db *sql.DB) *SpeakerStore {
	return &SpeakerStore{db: db}
}

const speakerColumns = `id, project_id, name, default_voice_id, color, created_at, updated_at`

func (r *SpeakerStore) GetAll(ctx context.Context, projectID string) ([]models.Speaker, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+speakerColumns+` FROM speakers WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to select speakers: %w", err)
	}
	defer rows.Close()

	var result []models.Speaker
	for rows.Next() {
		var sp models.Speaker
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.DefaultVoiceID,
			&sp.Color, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SpeakerStore) Create(ctx context.Context, in store.CreateSpeakerInput) (models.Speaker, error) {
	if in.ProjectID == "" || in.Name == "" {
		return models.Speaker{}, fmt.Errorf("project id and name required: %w", common.ErrValidation)
	}

	now := time.Now().UTC()
	sp := models.Speaker{
		ID:             uuid.NewString(),
		ProjectID:      in.ProjectID,
		Name:           in.Name,
		DefaultVoiceID: in.DefaultVoiceID,
		Color:          in.Color,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO speakers (`+speakerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.ProjectID, sp.Name, sp.DefaultVoiceID, sp.Color, sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return models.Speaker{}, fmt.Errorf("failed to insert speaker: %w", err)
	}
	return sp, nil
}

func (r *SpeakerStore) Update(ctx context.Context, id string, patch store.SpeakerPatch) (models.Speaker, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+speakerColumns+` FROM speakers WHERE id = ?`, id)

	var sp models.Speaker
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.DefaultVoiceID,
		&sp.Color, &sp.CreatedAt, &sp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Speaker{}, fmt.Errorf("speaker %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return models.Speaker{}, fmt.Errorf("failed to select speaker: %w", err)
	}

	if patch.Name != nil {
		sp.Name = *patch.Name
	}
	if patch.DefaultVoiceID != nil {
		sp.DefaultVoiceID = *patch.DefaultVoiceID
	}
	if patch.Color != nil {
		sp.Color = *patch.Color
	}
	sp.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`UPDATE speakers SET name = ?, default_voice_id = ?, color = ?, updated_at = ? WHERE id = ?`,
		sp.Name, sp.DefaultVoiceID, sp.Color, sp.UpdatedAt, sp.ID)
	if err != nil {
		return models.Speaker{}, fmt.Errorf("failed to update speaker: %w", err)
	}
	return sp, nil
}

// Delete removes a speaker. Segments referencing it keep their dangling
// speaker_id; lookup simply resolves to no speaker.
func (r *SpeakerStore) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM speakers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete speaker: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("speaker %s: %w", id, common.ErrNotFound)
	}
	return nil
}
