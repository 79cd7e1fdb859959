package events

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reelcraft/api/internal/storage/postgres"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetPending(ctx context.Context, limit int) ([]postgres.OutboxRecord, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]postgres.OutboxRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) MarkProcessed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func newTestRelay(t *testing.T, store OutboxStore, pub Publisher) *Relay {
	t.Helper()
	r, err := NewRelay(RelayConfig{
		Store:     store,
		Publisher: pub,
		Interval:  time.Second,
		BatchSize: 10,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return r
}

func TestNewRelay_Validation(t *testing.T) {
	_, err := NewRelay(RelayConfig{Publisher: &mockPublisher{}, Interval: time.Second, BatchSize: 1})
	require.Error(t, err)
	_, err = NewRelay(RelayConfig{Store: &mockStore{}, Interval: time.Second, BatchSize: 1})
	require.Error(t, err)
	_, err = NewRelay(RelayConfig{Store: &mockStore{}, Publisher: &mockPublisher{}, BatchSize: 1})
	require.Error(t, err)
	_, err = NewRelay(RelayConfig{Store: &mockStore{}, Publisher: &mockPublisher{}, Interval: time.Second})
	require.Error(t, err)
}

func TestRelayBatch_PublishesAndMarks(t *testing.T) {
	store := &mockStore{}
	pub := &mockPublisher{}
	ctx := context.Background()

	store.On("GetPending", ctx, 10).Return([]postgres.OutboxRecord{
		{ID: 1, EventID: "e1", EventType: "job.created", JobID: "j1", Payload: []byte(`{"a":1}`)},
		{ID: 2, EventID: "e2", EventType: "job.completed", JobID: "j1", Payload: []byte(`{"a":2}`)},
	}, nil)
	pub.On("Publish", ctx, "j1", []byte(`{"a":1}`)).Return(nil)
	pub.On("Publish", ctx, "j1", []byte(`{"a":2}`)).Return(nil)
	store.On("MarkProcessed", ctx, int64(1)).Return(nil)
	store.On("MarkProcessed", ctx, int64(2)).Return(nil)

	marked, err := newTestRelay(t, store, pub).RelayBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, marked)
	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRelayBatch_FailedPublishIsNotMarked(t *testing.T) {
	store := &mockStore{}
	pub := &mockPublisher{}
	ctx := context.Background()

	store.On("GetPending", ctx, 10).Return([]postgres.OutboxRecord{
		{ID: 1, EventID: "e1", JobID: "j1", Payload: []byte(`1`)},
		{ID: 2, EventID: "e2", JobID: "j2", Payload: []byte(`2`)},
	}, nil)
	pub.On("Publish", ctx, "j1", []byte(`1`)).Return(errors.New("broker down"))
	pub.On("Publish", ctx, "j2", []byte(`2`)).Return(nil)
	store.On("MarkProcessed", ctx, int64(2)).Return(nil)

	marked, err := newTestRelay(t, store, pub).RelayBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, marked)
	store.AssertNotCalled(t, "MarkProcessed", ctx, int64(1))
}

func TestRelayBatch_StoreError(t *testing.T) {
	store := &mockStore{}
	ctx := context.Background()
	store.On("GetPending", ctx, 10).Return(nil, errors.New("db gone"))

	_, err := newTestRelay(t, store, &mockPublisher{}).RelayBatch(ctx)
	require.Error(t, err)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, newTestRelay(t, &mockStore{}, &mockPublisher{}).Run(ctx))
}
