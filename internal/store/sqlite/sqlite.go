// Package sqlite implements the segment, speaker and history stores on a
// local SQLite database, the persistence collaborator of a single-user
// desktop editor.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/okoshkin/dubedit/internal/store/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// Stores bundles the three store implementations sharing one database.
type Stores struct {
	DB       *sql.DB
	Segments *SegmentStore
	Speakers *SpeakerStore
	History  *HistoryStore
}

// RunMigrations applies all embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the project database at dsn, applies
// migrations and returns the bundled stores.
func Open(ctx context.Context, dsn string) (*Stores, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Stores{
		DB:       db,
		Segments: NewSegmentStore(db),
		Speakers: NewSpeakerStore(db),
		History:  NewHistoryStore(db),
	}, nil
}

// Close closes the underlying database.
func (s *Stores) Close() error {
	return s.DB.Close()
}
