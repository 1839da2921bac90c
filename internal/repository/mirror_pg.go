package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGMirror stores each booking as a JSONB document.
type PGMirror struct {
	db *pgxpool.Pool
}

func NewPGMirror(ctx context.Context, db *pgxpool.Pool) (*PGMirror, error) {
	m := &PGMirror{db: db}
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS booking_documents (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return nil, fmt.Errorf("create booking_documents: %w", err)
	}
	if _, err := db.Exec(ctx, `ALTER TABLE booking_documents ADD COLUMN IF NOT EXISTS modified_at BIGINT NOT NULL DEFAULT 0`); err != nil {
		return nil, fmt.Errorf("migrate booking_documents: %w", err)
	}
	return m, nil
}

// The conflict branch only fires when the stored row is not newer.
const upsertDocumentSQL = `INSERT INTO booking_documents (id, doc, modified_at, updated_at)
	VALUES ($1, $2::jsonb, $3, now())
	ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, modified_at = EXCLUDED.modified_at, updated_at = now()
	WHERE booking_documents.modified_at <= EXCLUDED.modified_at`

func (m *PGMirror) Name() string { return "postgres" }

func (m *PGMirror) Upsert(ctx context.Context, booking domain.Booking) error {
	doc, err := json.Marshal(booking)
	if err != nil {
		return err
	}
	tag, err := m.db.Exec(ctx, upsertDocumentSQL, booking.ID.String(), string(doc), snapshotVersion(booking))
	if err != nil {
		return fmt.Errorf("upsert booking %s: %w", booking.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking %s: %w", booking.ID, ErrStaleSnapshot)
	}
	return nil
}
