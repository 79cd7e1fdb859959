package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reelcraft/api/internal/model"
)

// MemoryJobRepository is an in-process JobRepository for tests and local runs.
type MemoryJobRepository struct {
	mu     sync.RWMutex
	data   map[string]*model.Job
	events []model.JobEvent
	clock  func() time.Time
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		data:  make(map[string]*model.Job),
		clock: time.Now,
	}
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *model.Job, events ...model.JobEvent) error {
	if job == nil || job.ID == "" || job.UserID == "" {
		return model.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[job.ID]; exists {
		return model.ErrInvalidArgument
	}

	now := r.clock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	r.data[job.ID] = job.Clone()
	for _, ev := range events {
		r.events = append(r.events, ev.Stamp(job))
	}
	return nil
}

func (r *MemoryJobRepository) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, model.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.data[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryJobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Job
	for _, job := range r.data {
		if job.UserID == userID {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryJobRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, job := range r.data {
		if job.UserID == userID && !job.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryJobRepository) Update(ctx context.Context, id string, upd model.JobUpdate, events ...model.JobEvent) (*model.Job, error) {
	if id == "" {
		return nil, model.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.data[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return nil, model.ErrJobFinished
	}

	upd.Apply(job)
	job.UpdatedAt = r.clock()

	for _, ev := range events {
		r.events = append(r.events, ev.Stamp(job))
	}
	return job.Clone(), nil
}

// Events returns the lifecycle events recorded so far, oldest first.
func (r *MemoryJobRepository) Events() []model.JobEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.JobEvent, len(r.events))
	copy(out, r.events)
	return out
}

// PingContext always succeeds.
func (r *MemoryJobRepository) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// MemoryProfileRepository maps user ids to plans.
type MemoryProfileRepository struct {
	mu    sync.RWMutex
	plans map[string]string
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{plans: make(map[string]string)}
}

// SetPlan creates or replaces the user's profile.
func (r *MemoryProfileRepository) SetPlan(userID, plan string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[userID] = plan
}

func (r *MemoryProfileRepository) GetPlan(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, ok := r.plans[userID]
	if !ok {
		return "", model.ErrProfileNotFound
	}
	return plan, nil
}

// MemoryUploadRepository keeps upload records in a slice.
type MemoryUploadRepository struct {
	mu      sync.Mutex
	uploads []*model.Upload
}

func NewMemoryUploadRepository() *MemoryUploadRepository {
	return &MemoryUploadRepository{}
}

func (r *MemoryUploadRepository) Create(ctx context.Context, u *model.Upload) error {
	if u == nil || u.ID == "" {
		return model.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *u
	r.uploads = append(r.uploads, &cp)
	return nil
}

func (r *MemoryUploadRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Upload
	for _, u := range r.uploads {
		if u.CreatedAt.Before(cutoff) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryUploadRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.uploads[:0]
	var deleted int64
	for _, u := range r.uploads {
		if u.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, u)
	}
	r.uploads = kept
	return deleted, nil
}

// All returns every stored upload.
func (r *MemoryUploadRepository) All() []*model.Upload {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Upload, 0, len(r.uploads))
	for _, u := range r.uploads {
		cp := *u
		out = append(out, &cp)
	}
	return out
}
