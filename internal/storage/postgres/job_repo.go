package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/reelcraft/api/internal/model"
)

const jobColumns = `
	id, user_id, team_id, name, status,
	COALESCE(stage, '') AS stage,
	COALESCE(progress, 0) AS progress,
	COALESCE(files, '{}'::jsonb) AS files,
	COALESCE(style_id, '') AS style_id,
	COALESCE(duration, 0) AS duration,
	COALESCE(watermarked, false) AS watermarked,
	preview_url, output_url, error, created_at, updated_at`

type JobRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
}

func NewJobRepo(db *sqlx.DB, outbox *OutboxRepo) *JobRepo {
	return &JobRepo{db: db, outbox: outbox}
}

func (r *JobRepo) Create(ctx context.Context, job *model.Job, events ...model.JobEvent) error {
	const q = `
		INSERT INTO jobs_new (id, user_id, team_id, name, status, stage, progress, files,
			style_id, duration, watermarked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	files, err := job.Files.Value()
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "job create: begin tx")
	}
	defer tx.Rollback()

	row := tx.QueryRowxContext(ctx, q,
		job.ID, job.UserID, nullString(job.TeamID), job.Name, string(job.Status), string(job.Stage),
		job.Progress, files, job.StyleID, job.Duration, job.Watermarked,
	)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return errors.Wrap(err, "job create")
	}

	if err := r.addEvents(ctx, tx, job, events); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "job create: commit")
}

func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs_new WHERE id = $1`

	var job model.Job
	if err := r.db.GetContext(ctx, &job, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, errors.Wrap(err, "job get by id")
	}
	return &job, nil
}

func (r *JobRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs_new WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	var jobs []*model.Job
	if err := r.db.SelectContext(ctx, &jobs, q, userID, limit); err != nil {
		return nil, errors.Wrap(err, "job list by user")
	}
	return jobs, nil
}

func (r *JobRepo) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM jobs_new WHERE user_id = $1 AND created_at >= $2`

	var n int
	if err := r.db.GetContext(ctx, &n, q, userID, since); err != nil {
		return 0, errors.Wrap(err, "job count created since")
	}
	return n, nil
}

// Update writes upd in a single conditional statement. Progress is raised
// with GREATEST and terminal rows are never matched.
func (r *JobRepo) Update(ctx context.Context, id string, upd model.JobUpdate, events ...model.JobEvent) (*model.Job, error) {
	q := `
		UPDATE jobs_new SET
			status      = COALESCE($2, status),
			stage       = COALESCE($3, stage),
			progress    = GREATEST(COALESCE(progress, 0), COALESCE($4, 0)),
			files       = COALESCE($5::jsonb, files),
			preview_url = COALESCE($6, preview_url),
			output_url  = COALESCE($7, output_url),
			error       = COALESCE($8, error),
			updated_at  = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
		RETURNING ` + jobColumns

	var files sql.NullString
	if upd.Files != nil {
		v, err := upd.Files.Value()
		if err != nil {
			return nil, err
		}
		files = sql.NullString{String: v.(string), Valid: true}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "job update: begin tx")
	}
	defer tx.Rollback()

	var job model.Job
	err = tx.GetContext(ctx, &job, q,
		id,
		nullString(upd.Status),
		nullString(upd.Stage),
		nullInt(upd.Progress),
		files,
		nullString(upd.PreviewURL),
		nullString(upd.OutputURL),
		nullString(upd.Error),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missReason(ctx, tx, id)
		}
		return nil, errors.Wrap(err, "job update")
	}

	if err := r.addEvents(ctx, tx, &job, events); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "job update: commit")
	}
	return &job, nil
}

// missReason tells a missing row apart from a finished one.
func (r *JobRepo) missReason(ctx context.Context, tx *sqlx.Tx, id string) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs_new WHERE id = $1)`, id); err != nil {
		return errors.Wrap(err, "job update: check existence")
	}
	if exists {
		return model.ErrJobFinished
	}
	return model.ErrNotFound
}

func (r *JobRepo) addEvents(ctx context.Context, tx *sqlx.Tx, job *model.Job, events []model.JobEvent) error {
	if r.outbox == nil {
		return nil
	}
	for _, ev := range events {
		if err := r.outbox.Add(ctx, tx, ev.Stamp(job)); err != nil {
			return err
		}
	}
	return nil
}

func (r *JobRepo) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type stringLike interface {
	~string
}

func nullString[T stringLike](v *T) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
