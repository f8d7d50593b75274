package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncKey identifies one resumable walk: a contract modality over a date
// range against one of the consulta endpoints. The four fields form a
// unique composite key in storage.
type SyncKey struct {
	ModalityCode int
	DateStart    string // AAAAMMDD
	DateEnd      string // AAAAMMDD
	Endpoint     string
}

// SyncProgress records the last fully applied page for a SyncKey, plus the
// total page count reported by the source once it is known. LastPage only
// advances; a key with LastPage >= TotalPages is fully synced and skipped
// on subsequent runs.
type SyncProgress struct {
	ID         uuid.UUID
	Key        SyncKey
	LastPage   int
	TotalPages int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Done reports whether the key's range has been walked to the end.
func (p *SyncProgress) Done() bool {
	return p.TotalPages > 0 && p.LastPage >= p.TotalPages
}
