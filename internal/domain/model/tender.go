package model

import (
	"time"

	"github.com/google/uuid"
)

// Tender is the central procurement record sourced from the PNCP portal.
// ControlNumber is the globally unique identifier issued by the source
// system; GlobalUpdateDate is the authoritative change marker for delta
// synchronization.
type Tender struct {
	ID                  uuid.UUID
	ControlNumber       string
	PurchaseNumber      string
	PurchaseYear        int
	PurchaseSequence    int
	Process             string
	ModalityID          int
	ModalityName        string
	InstrumentTypeName  string
	StatusID            int
	StatusName          string
	PurchaseObject      string
	EstimatedTotalValue *float64
	ApprovedTotalValue  *float64
	InclusionDate       *time.Time
	PublicationDate     *time.Time
	UpdateDate          *time.Time
	ProposalOpeningDate *time.Time
	ProposalClosingDate *time.Time
	DisputeModeID       int
	DisputeModeName     string
	SRP                 bool
	UserName            string
	SourceSystemLink    string
	EProcessLink        string
	GlobalUpdateDate    time.Time

	OrganizationalUnitID uuid.UUID
	ContractingEntityID  uuid.UUID
	LegalBasisID         uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}
