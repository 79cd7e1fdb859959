package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/reelcraft/api/internal/client"
	"github.com/reelcraft/api/internal/model"
)

type AIWorkerMock struct {
	mock.Mock
}

func (m *AIWorkerMock) AnalyzeBeats(ctx context.Context, file model.MediaFile) (*client.BeatsResponse, error) {
	args := m.Called(ctx, file)
	if v := args.Get(0); v != nil {
		return v.(*client.BeatsResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AIWorkerMock) AnalyzeScenes(ctx context.Context, file model.MediaFile) (*client.ScenesResponse, error) {
	args := m.Called(ctx, file)
	if v := args.Get(0); v != nil {
		return v.(*client.ScenesResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AIWorkerMock) GenerateCaptions(ctx context.Context, req *client.CaptionRequest) (*client.CaptionsResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*client.CaptionsResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AIWorkerMock) CompileTimeline(ctx context.Context, req *client.TimelineRequest) (*client.TimelineResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*client.TimelineResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AIWorkerMock) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type StorageMock struct {
	mock.Mock
}

func (m *StorageMock) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, expiry)
	return args.String(0), args.Error(1)
}

func (m *StorageMock) DeleteObjects(ctx context.Context, keys []string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *StorageMock) GetPublicURL(key string) string {
	return m.Called(key).String(0)
}

func (m *StorageMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type UploadRepoMock struct {
	mock.Mock
}

func (m *UploadRepoMock) Create(ctx context.Context, u *model.Upload) error {
	return m.Called(ctx, u).Error(0)
}

func (m *UploadRepoMock) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Upload, error) {
	args := m.Called(ctx, cutoff)
	if v := args.Get(0); v != nil {
		return v.([]*model.Upload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UploadRepoMock) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
