package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
)

// The three reference repositories share one method shape so the resolver
// can run the same scan/diff/insert/re-query routine over each of them.
// Inserts use collision-skip semantics: a concurrent run creating the same
// natural key is never an error.

// OrganizationalUnitRepository provides access to organizational unit data.
type OrganizationalUnitRepository interface {
	FindIDsByKeys(ctx context.Context, unitCodes []string) (map[string]uuid.UUID, error)
	BulkInsertMissing(ctx context.Context, units []*model.OrganizationalUnit) error
}

// ContractingEntityRepository provides access to contracting entity data.
type ContractingEntityRepository interface {
	FindIDsByKeys(ctx context.Context, taxIDs []string) (map[string]uuid.UUID, error)
	BulkInsertMissing(ctx context.Context, entities []*model.ContractingEntity) error
}

// LegalBasisRepository provides access to legal basis data.
type LegalBasisRepository interface {
	FindIDsByKeys(ctx context.Context, codes []int) (map[int]uuid.UUID, error)
	BulkInsertMissing(ctx context.Context, bases []*model.LegalBasis) error
}

// TenderRef is the stored identity and change marker of a known tender.
type TenderRef struct {
	ID               uuid.UUID
	GlobalUpdateDate time.Time
}

// TenderRepository provides access to tender data.
type TenderRepository interface {
	ExistingByControlNumbers(ctx context.Context, controlNumbers []string) (map[string]TenderRef, error)
	// BulkInsert inserts with collision-skip and reports how many rows were
	// actually written, so a retried page is a counted no-op.
	BulkInsert(ctx context.Context, tenders []*model.Tender) (int, error)
	Update(ctx context.Context, t *model.Tender) error
}

// SyncProgressRepository provides access to per-key resume markers.
type SyncProgressRepository interface {
	Get(ctx context.Context, key model.SyncKey) (*model.SyncProgress, error)
	// Upsert creates or advances the row for key. LastPage never moves
	// backwards regardless of caller ordering.
	Upsert(ctx context.Context, key model.SyncKey, lastPage, totalPages int) error
}

// FollowerRepository provides access to tender follower data.
type FollowerRepository interface {
	// EligibleByControlNumber returns followers of the tender that opted
	// into change notifications.
	EligibleByControlNumber(ctx context.Context, controlNumber string) ([]model.TenderFollower, error)
}
