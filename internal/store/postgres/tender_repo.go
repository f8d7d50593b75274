package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/store"
)

type TenderRepo struct {
	db *DB
}

func NewTenderRepo(db *DB) *TenderRepo {
	return &TenderRepo{db: db}
}

func (r *TenderRepo) ExistingByControlNumbers(ctx context.Context, controlNumbers []string) (map[string]store.TenderRef, error) {
	result := make(map[string]store.TenderRef, len(controlNumbers))
	if len(controlNumbers) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT control_number, id, global_update_date
		FROM tenders
		WHERE control_number = ANY($1)
	`, pq.Array(controlNumbers))
	if err != nil {
		return nil, fmt.Errorf("find tenders by control number: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var controlNumber string
		var ref store.TenderRef
		if err := rows.Scan(&controlNumber, &ref.ID, &ref.GlobalUpdateDate); err != nil {
			return nil, fmt.Errorf("scan tender ref: %w", err)
		}
		result[controlNumber] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find tenders rows: %w", err)
	}
	return result, nil
}

// BulkInsert inserts tenders with collision-skip on control_number. The
// RETURNING clause counts only rows actually written, so a retried page
// reports zero instead of failing.
func (r *TenderRepo) BulkInsert(ctx context.Context, tenders []*model.Tender) (int, error) {
	if len(tenders) == 0 {
		return 0, nil
	}

	const cols = 28
	args := make([]interface{}, 0, len(tenders)*cols)
	valuesClauses := make([]string, 0, len(tenders))

	for i, t := range tenders {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valuesClauses = append(valuesClauses, "("+strings.Join(ph, ", ")+")")
		args = append(args,
			t.ControlNumber, t.PurchaseNumber, t.PurchaseYear, t.PurchaseSequence,
			t.Process, t.ModalityID, t.ModalityName, t.InstrumentTypeName,
			t.StatusID, t.StatusName, t.PurchaseObject,
			t.EstimatedTotalValue, t.ApprovedTotalValue,
			t.InclusionDate, t.PublicationDate, t.UpdateDate,
			t.ProposalOpeningDate, t.ProposalClosingDate,
			t.DisputeModeID, t.DisputeModeName, t.SRP, t.UserName,
			t.SourceSystemLink, t.EProcessLink, t.GlobalUpdateDate,
			t.OrganizationalUnitID, t.ContractingEntityID, t.LegalBasisID,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO tenders (
			control_number, purchase_number, purchase_year, purchase_sequence,
			process, modality_id, modality_name, instrument_type_name,
			status_id, status_name, purchase_object,
			estimated_total_value, approved_total_value,
			inclusion_date, publication_date, update_date,
			proposal_opening_date, proposal_closing_date,
			dispute_mode_id, dispute_mode_name, srp, user_name,
			source_system_link, eprocess_link, global_update_date,
			organizational_unit_id, contracting_entity_id, legal_basis_id
		)
		VALUES %s
		ON CONFLICT (control_number) DO NOTHING
		RETURNING control_number
	`, strings.Join(valuesClauses, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk insert tenders: %w", err)
	}
	defer rows.Close()

	inserted := 0
	for rows.Next() {
		var controlNumber string
		if err := rows.Scan(&controlNumber); err != nil {
			return inserted, fmt.Errorf("bulk insert tenders scan: %w", err)
		}
		inserted++
	}
	if err := rows.Err(); err != nil {
		return inserted, fmt.Errorf("bulk insert tenders rows: %w", err)
	}
	return inserted, nil
}

func (r *TenderRepo) Update(ctx context.Context, t *model.Tender) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenders SET
			purchase_number = $2,
			purchase_year = $3,
			purchase_sequence = $4,
			process = $5,
			modality_id = $6,
			modality_name = $7,
			instrument_type_name = $8,
			status_id = $9,
			status_name = $10,
			purchase_object = $11,
			estimated_total_value = $12,
			approved_total_value = $13,
			inclusion_date = $14,
			publication_date = $15,
			update_date = $16,
			proposal_opening_date = $17,
			proposal_closing_date = $18,
			dispute_mode_id = $19,
			dispute_mode_name = $20,
			srp = $21,
			user_name = $22,
			source_system_link = $23,
			eprocess_link = $24,
			global_update_date = $25,
			organizational_unit_id = $26,
			contracting_entity_id = $27,
			legal_basis_id = $28,
			updated_at = now()
		WHERE control_number = $1
	`, t.ControlNumber, t.PurchaseNumber, t.PurchaseYear, t.PurchaseSequence,
		t.Process, t.ModalityID, t.ModalityName, t.InstrumentTypeName,
		t.StatusID, t.StatusName, t.PurchaseObject,
		t.EstimatedTotalValue, t.ApprovedTotalValue,
		t.InclusionDate, t.PublicationDate, t.UpdateDate,
		t.ProposalOpeningDate, t.ProposalClosingDate,
		t.DisputeModeID, t.DisputeModeName, t.SRP, t.UserName,
		t.SourceSystemLink, t.EProcessLink, t.GlobalUpdateDate,
		t.OrganizationalUnitID, t.ContractingEntityID, t.LegalBasisID,
	)
	if err != nil {
		return fmt.Errorf("update tender %s: %w", t.ControlNumber, err)
	}
	return nil
}
