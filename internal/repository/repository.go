package repository

import (
	"context"
	"time"

	"github.com/reelcraft/api/internal/model"
)

// JobRepository persists jobs_new rows. Update never lowers progress and
// refuses to touch completed or failed jobs (model.ErrJobFinished). Events
// are stamped with the written row and stored in the same transaction.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job, events ...model.JobEvent) error
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Job, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	Update(ctx context.Context, id string, upd model.JobUpdate, events ...model.JobEvent) (*model.Job, error)
}

// ProfileRepository reads the user's billing plan.
type ProfileRepository interface {
	GetPlan(ctx context.Context, userID string) (string, error)
}

// UploadRepository tracks presigned uploads for later cleanup.
type UploadRepository interface {
	Create(ctx context.Context, u *model.Upload) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Upload, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pinger is satisfied by anything that can report connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}
