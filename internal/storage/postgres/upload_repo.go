package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/reelcraft/api/internal/model"
)

type UploadRepo struct {
	db *sqlx.DB
}

func NewUploadRepo(db *sqlx.DB) *UploadRepo {
	return &UploadRepo{db: db}
}

func (r *UploadRepo) Create(ctx context.Context, u *model.Upload) error {
	const q = `
		INSERT INTO uploads (id, user_id, filename, file_path, file_size, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.UserID, u.Filename, u.FilePath, u.FileSize, u.MimeType, u.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "upload create")
	}
	return nil
}

func (r *UploadRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Upload, error) {
	const q = `
		SELECT id, user_id, filename, file_path, file_size, mime_type, created_at
		FROM uploads
		WHERE created_at < $1
		ORDER BY created_at ASC
	`

	var uploads []*model.Upload
	if err := r.db.SelectContext(ctx, &uploads, q, cutoff); err != nil {
		return nil, errors.Wrap(err, "upload list older than")
	}
	return uploads, nil
}

func (r *UploadRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "upload delete older than")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "upload delete rows affected")
	}
	return n, nil
}
