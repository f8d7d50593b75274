package postgres

import (
	"context"
	"fmt"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
)

type FollowerRepo struct {
	db *DB
}

func NewFollowerRepo(db *DB) *FollowerRepo {
	return &FollowerRepo{db: db}
}

func (r *FollowerRepo) EligibleByControlNumber(ctx context.Context, controlNumber string) ([]model.TenderFollower, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, control_number, name, email, notify, created_at
		FROM tender_followers
		WHERE control_number = $1 AND notify = TRUE
	`, controlNumber)
	if err != nil {
		return nil, fmt.Errorf("find eligible followers: %w", err)
	}
	defer rows.Close()

	var followers []model.TenderFollower
	for rows.Next() {
		var f model.TenderFollower
		if err := rows.Scan(&f.ID, &f.ControlNumber, &f.Name, &f.Email, &f.Notify, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan follower: %w", err)
		}
		followers = append(followers, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find eligible followers rows: %w", err)
	}
	return followers, nil
}
