package postgres

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/reelcraft/api/internal/model"
)

type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) GetPlan(ctx context.Context, userID string) (string, error) {
	const q = `SELECT COALESCE(plan, 'free') FROM profiles WHERE id = $1`

	var plan string
	if err := r.db.GetContext(ctx, &plan, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrProfileNotFound
		}
		return "", errors.Wrap(err, "profile get plan")
	}
	return plan, nil
}
