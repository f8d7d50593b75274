package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
)

type ContractingEntityRepo struct {
	db *DB
}

func NewContractingEntityRepo(db *DB) *ContractingEntityRepo {
	return &ContractingEntityRepo{db: db}
}

func (r *ContractingEntityRepo) FindIDsByKeys(ctx context.Context, taxIDs []string) (map[string]uuid.UUID, error) {
	result := make(map[string]uuid.UUID, len(taxIDs))
	if len(taxIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT tax_id, id
		FROM contracting_entities
		WHERE tax_id = ANY($1)
	`, pq.Array(taxIDs))
	if err != nil {
		return nil, fmt.Errorf("find contracting entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taxID string
		var id uuid.UUID
		if err := rows.Scan(&taxID, &id); err != nil {
			return nil, fmt.Errorf("scan contracting entity: %w", err)
		}
		result[taxID] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find contracting entities rows: %w", err)
	}
	return result, nil
}

func (r *ContractingEntityRepo) BulkInsertMissing(ctx context.Context, entities []*model.ContractingEntity) error {
	if len(entities) == 0 {
		return nil
	}

	const cols = 4
	args := make([]interface{}, 0, len(entities)*cols)
	valuesClauses := make([]string, 0, len(entities))

	for i, e := range entities {
		base := i * cols
		valuesClauses = append(valuesClauses, fmt.Sprintf(
			"($%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4,
		))
		args = append(args, e.TaxID, e.Name, e.BranchCode, e.SphereCode)
	}

	query := fmt.Sprintf(`
		INSERT INTO contracting_entities (tax_id, name, branch_code, sphere_code)
		VALUES %s
		ON CONFLICT (tax_id) DO NOTHING
	`, strings.Join(valuesClauses, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("bulk insert contracting entities: %w", err)
	}
	return nil
}
