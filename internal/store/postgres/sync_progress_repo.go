package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
)

type SyncProgressRepo struct {
	db *DB
}

func NewSyncProgressRepo(db *DB) *SyncProgressRepo {
	return &SyncProgressRepo{db: db}
}

func (r *SyncProgressRepo) Get(ctx context.Context, key model.SyncKey) (*model.SyncProgress, error) {
	var p model.SyncProgress
	err := r.db.QueryRowContext(ctx, `
		SELECT id, modality_code, date_start, date_end, endpoint, last_page, total_pages, created_at, updated_at
		FROM sync_progress
		WHERE modality_code = $1 AND date_start = $2 AND date_end = $3 AND endpoint = $4
	`, key.ModalityCode, key.DateStart, key.DateEnd, key.Endpoint).Scan(
		&p.ID, &p.Key.ModalityCode, &p.Key.DateStart, &p.Key.DateEnd, &p.Key.Endpoint,
		&p.LastPage, &p.TotalPages, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync progress: %w", err)
	}
	return &p, nil
}

// Upsert creates or advances the resume marker for key. GREATEST guards
// keep last_page monotonic under concurrent runs of the same key.
func (r *SyncProgressRepo) Upsert(ctx context.Context, key model.SyncKey, lastPage, totalPages int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_progress (modality_code, date_start, date_end, endpoint, last_page, total_pages)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (modality_code, date_start, date_end, endpoint) DO UPDATE SET
			last_page = GREATEST(sync_progress.last_page, EXCLUDED.last_page),
			total_pages = GREATEST(sync_progress.total_pages, EXCLUDED.total_pages),
			updated_at = now()
	`, key.ModalityCode, key.DateStart, key.DateEnd, key.Endpoint, lastPage, totalPages)
	if err != nil {
		return fmt.Errorf("upsert sync progress: %w", err)
	}
	return nil
}
