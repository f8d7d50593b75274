package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
)

type OrganizationalUnitRepo struct {
	db *DB
}

func NewOrganizationalUnitRepo(db *DB) *OrganizationalUnitRepo {
	return &OrganizationalUnitRepo{db: db}
}

func (r *OrganizationalUnitRepo) FindIDsByKeys(ctx context.Context, unitCodes []string) (map[string]uuid.UUID, error) {
	result := make(map[string]uuid.UUID, len(unitCodes))
	if len(unitCodes) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT unit_code, id
		FROM organizational_units
		WHERE unit_code = ANY($1)
	`, pq.Array(unitCodes))
	if err != nil {
		return nil, fmt.Errorf("find organizational units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var id uuid.UUID
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("scan organizational unit: %w", err)
		}
		result[code] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find organizational units rows: %w", err)
	}
	return result, nil
}

func (r *OrganizationalUnitRepo) BulkInsertMissing(ctx context.Context, units []*model.OrganizationalUnit) error {
	if len(units) == 0 {
		return nil
	}

	const cols = 6
	args := make([]interface{}, 0, len(units)*cols)
	valuesClauses := make([]string, 0, len(units))

	for i, u := range units {
		base := i * cols
		valuesClauses = append(valuesClauses, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, u.UnitCode, u.Name, u.City, u.StateName, u.StateAbbr, u.IBGECode)
	}

	query := fmt.Sprintf(`
		INSERT INTO organizational_units (unit_code, name, city, state_name, state_abbr, ibge_code)
		VALUES %s
		ON CONFLICT (unit_code) DO NOTHING
	`, strings.Join(valuesClauses, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("bulk insert organizational units: %w", err)
	}
	return nil
}
