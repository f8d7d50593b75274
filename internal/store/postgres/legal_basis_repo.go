package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
)

type LegalBasisRepo struct {
	db *DB
}

func NewLegalBasisRepo(db *DB) *LegalBasisRepo {
	return &LegalBasisRepo{db: db}
}

func (r *LegalBasisRepo) FindIDsByKeys(ctx context.Context, codes []int) (map[int]uuid.UUID, error) {
	result := make(map[int]uuid.UUID, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	// pq.Array needs a concrete int64 slice for bigint columns.
	codes64 := make([]int64, len(codes))
	for i, c := range codes {
		codes64[i] = int64(c)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT code, id
		FROM legal_bases
		WHERE code = ANY($1)
	`, pq.Array(codes64))
	if err != nil {
		return nil, fmt.Errorf("find legal bases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code int
		var id uuid.UUID
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("scan legal basis: %w", err)
		}
		result[code] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find legal bases rows: %w", err)
	}
	return result, nil
}

func (r *LegalBasisRepo) BulkInsertMissing(ctx context.Context, bases []*model.LegalBasis) error {
	if len(bases) == 0 {
		return nil
	}

	const cols = 3
	args := make([]interface{}, 0, len(bases)*cols)
	valuesClauses := make([]string, 0, len(bases))

	for i, b := range bases {
		base := i * cols
		valuesClauses = append(valuesClauses, fmt.Sprintf(
			"($%d, $%d, $%d)",
			base+1, base+2, base+3,
		))
		args = append(args, b.Code, b.Name, b.Description)
	}

	query := fmt.Sprintf(`
		INSERT INTO legal_bases (code, name, description)
		VALUES %s
		ON CONFLICT (code) DO NOTHING
	`, strings.Join(valuesClauses, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("bulk insert legal bases: %w", err)
	}
	return nil
}
