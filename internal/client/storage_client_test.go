package client

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reelcraft/api/internal/config"
)

func TestNewS3Storage_RequiresConfig(t *testing.T) {
	_, err := NewS3Storage(context.Background(), &config.StorageConfig{Endpoint: "https://x"})
	require.Error(t, err)

	_, err = NewS3Storage(context.Background(), &config.StorageConfig{
		Endpoint: "https://x", AccessKeyID: "a", SecretAccessKey: "s",
	})
	require.Error(t, err)
}

func TestS3Storage_PresignUpload(t *testing.T) {
	s, err := NewS3Storage(context.Background(), &config.StorageConfig{
		Endpoint:        "https://proj.supabase.co/storage/v1/s3",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "video-uploads",
	})
	require.NoError(t, err)
	require.True(t, s.IsConfigured())

	raw, err := s.PresignUpload(context.Background(), "uploads/u1/1_a.mp4", "video/mp4", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "proj.supabase.co", u.Host)
	require.True(t, strings.HasSuffix(u.Path, "/video-uploads/uploads/u1/1_a.mp4"), u.Path)
	require.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestS3Storage_GetPublicURL(t *testing.T) {
	s := &S3Storage{bucket: "video-uploads", publicURL: "https://cdn.example.com/public"}
	require.Equal(t, "https://cdn.example.com/public/uploads/a.mp4", s.GetPublicURL("/uploads/a.mp4"))

	s.publicURL = ""
	require.Equal(t, "/video-uploads/uploads/a.mp4", s.GetPublicURL("uploads/a.mp4"))

	var nilStorage *S3Storage
	require.False(t, nilStorage.IsConfigured())
}
