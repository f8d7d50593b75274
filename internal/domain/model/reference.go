package model

import (
	"time"

	"github.com/google/uuid"
)

// Reference entities are created once by the pipeline and never updated
// or deleted by it. Each carries a natural key that is globally unique.

// OrganizationalUnit is a government sub-unit, keyed by its external unit code.
type OrganizationalUnit struct {
	ID        uuid.UUID
	UnitCode  string
	Name      string
	City      string
	StateName string
	StateAbbr string
	IBGECode  string
	CreatedAt time.Time
}

// ContractingEntity is the legal entity issuing a tender, keyed by tax ID (CNPJ).
type ContractingEntity struct {
	ID         uuid.UUID
	TaxID      string
	Name       string
	BranchCode string
	SphereCode string
	CreatedAt  time.Time
}

// LegalBasis is the statutory basis authorizing a procurement type,
// keyed by its integer code.
type LegalBasis struct {
	ID          uuid.UUID
	Code        int
	Name        string
	Description string
	CreatedAt   time.Time
}
