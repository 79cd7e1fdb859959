package service

import (
	"context"
	"sync"

	"github.com/reelcraft/api/internal/model"
)

// Notifier pushes realtime job updates to subscribers. Delivery is best
// effort and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, n model.JobNotification)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.JobNotification) {}

// RecordingNotifier keeps notifications in memory for tests.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []model.JobNotification
}

func (r *RecordingNotifier) Notify(_ context.Context, n model.JobNotification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of the notifications so far.
func (r *RecordingNotifier) Sent() []model.JobNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.JobNotification, len(r.sent))
	copy(out, r.sent)
	return out
}
