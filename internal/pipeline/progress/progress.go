package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/metrics"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/store"
)

// Tracker makes a (modality, date-range, endpoint) walk resumable across
// process restarts, deploys and request timeouts. It only trusts durably
// written pages: Checkpoint is called after a page's data has landed.
type Tracker struct {
	repo   store.SyncProgressRepository
	logger *slog.Logger
}

func New(repo store.SyncProgressRepository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		repo:   repo,
		logger: logger.With("component", "progress"),
	}
}

// Plan returns the page a new walk of key should start from, and whether
// the key is already fully synced. A key whose stored lastPage reached the
// recorded totalPages is done and must be skipped without any fetch.
func (t *Tracker) Plan(ctx context.Context, key model.SyncKey) (startPage int, done bool, err error) {
	p, err := t.repo.Get(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("load sync progress: %w", err)
	}
	if p == nil {
		return 1, false, nil
	}
	if p.Done() {
		return p.LastPage + 1, true, nil
	}
	return p.LastPage + 1, false, nil
}

// Checkpoint records that page was durably applied for key, along with
// the total page count the source reported. The repository keeps lastPage
// monotonic, so late or duplicate checkpoints never move the marker back.
func (t *Tracker) Checkpoint(ctx context.Context, key model.SyncKey, page, totalPages int) error {
	if err := t.repo.Upsert(ctx, key, page, totalPages); err != nil {
		return fmt.Errorf("checkpoint page %d: %w", page, err)
	}
	metrics.ProgressCheckpoints.WithLabelValues(key.Endpoint).Inc()
	t.logger.Debug("checkpointed page",
		"modality", key.ModalityCode,
		"endpoint", key.Endpoint,
		"page", page,
		"total_pages", totalPages,
	)
	return nil
}
