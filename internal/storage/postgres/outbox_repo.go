package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/reelcraft/api/internal/model"
)

type OutboxRepo struct {
	db *sqlx.DB
}

type OutboxRecord struct {
	ID         int64     `db:"id"`
	EventID    string    `db:"event_id"`
	EventType  string    `db:"event_type"`
	JobID      string    `db:"job_id"`
	Payload    []byte    `db:"payload"`
	OccurredAt time.Time `db:"occurred_at"`
}

func NewOutboxRepo(db *sqlx.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// Add stores event inside tx.
func (r *OutboxRepo) Add(ctx context.Context, tx *sqlx.Tx, event model.JobEvent) error {
	const q = `
		INSERT INTO job_outbox (event_id, event_type, job_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	_, err = tx.ExecContext(ctx, q, event.ID, string(event.Type), event.JobID, string(payload), event.OccurredAt)
	if err != nil {
		return errors.Wrap(err, "insert outbox")
	}
	return nil
}

func (r *OutboxRepo) GetPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	const q = `
		SELECT id, event_id, event_type, job_id, payload::text AS payload, occurred_at
		FROM job_outbox
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT $1
	`

	var records []OutboxRecord
	if err := r.db.SelectContext(ctx, &records, q, limit); err != nil {
		return nil, errors.Wrap(err, "get pending")
	}
	return records, nil
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id int64) error {
	const q = `UPDATE job_outbox SET processed_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return errors.Wrap(err, "mark processed")
	}
	return nil
}
