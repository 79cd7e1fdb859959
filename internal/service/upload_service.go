package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/client"
	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/repository"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// UploadServiceConfig holds presign and retention settings
type UploadServiceConfig struct {
	PresignExpiry time.Duration
	RetentionDays int
}

// CleanupResult summarizes one cleanup run
type CleanupResult struct {
	Found          int   `json:"found"`
	FilesDeleted   int   `json:"filesDeleted"`
	RecordsDeleted int64 `json:"recordsDeleted"`
}

// UploadService issues presigned upload URLs and removes stale uploads
type UploadService struct {
	storage client.ObjectStorage
	uploads repository.UploadRepository
	cfg     UploadServiceConfig
	logger  zerolog.Logger

	clock func() time.Time
	idGen func() uuid.UUID
}

// NewUploadService creates a new upload service. storage may be nil when
// object storage is not configured.
func NewUploadService(storage client.ObjectStorage, uploads repository.UploadRepository, cfg UploadServiceConfig, logger zerolog.Logger) *UploadService {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 2 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	return &UploadService{
		storage: storage,
		uploads: uploads,
		cfg:     cfg,
		logger:  logger.With().Str("component", "uploads").Logger(),
		clock:   time.Now,
		idGen:   uuid.New,
	}
}

// UploadPath returns the bucket key for a user's file.
func UploadPath(userID string, at time.Time, fileName string) string {
	return fmt.Sprintf("uploads/%s/%d_%s", userID, at.UnixMilli(), unsafeFileChars.ReplaceAllString(fileName, "_"))
}

// Presign validates the file and returns a signed upload URL. A failed
// uploads insert is logged and the URL is still returned.
func (s *UploadService) Presign(ctx context.Context, userID string, req *model.PresignRequest) (*model.PresignResponse, error) {
	if !model.IsAllowedUploadType(req.FileType) {
		return nil, errors.Wrapf(model.ErrInvalidArgument, "file type %s not allowed", req.FileType)
	}
	if req.FileSize > model.MaxUploadSize {
		return nil, errors.Wrap(model.ErrInvalidArgument, "file size too large (max 100MB)")
	}
	if s.storage == nil {
		return nil, errors.Wrap(model.ErrNotConfigured, "object storage")
	}

	now := s.clock().UTC()
	filePath := UploadPath(userID, now, req.FileName)

	url, err := s.storage.PresignUpload(ctx, filePath, req.FileType, s.cfg.PresignExpiry)
	if err != nil {
		return nil, errors.Wrap(err, "create upload url")
	}

	resp := &model.PresignResponse{
		Success:   true,
		UploadURL: url,
		FilePath:  filePath,
	}

	upload := &model.Upload{
		ID:        s.idGen().String(),
		UserID:    userID,
		Filename:  req.FileName,
		FilePath:  filePath,
		FileSize:  req.FileSize,
		MimeType:  req.FileType,
		CreatedAt: now,
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("file_path", filePath).Msg("failed to record upload")
	} else {
		resp.UploadID = upload.ID
	}

	s.logger.Info().Str("user_id", userID).Str("file_path", filePath).Msg("presigned upload url")
	return resp, nil
}

// Cleanup removes uploads older than the retention window from storage
// and the uploads table. Storage errors are logged; records are removed
// either way.
func (s *UploadService) Cleanup(ctx context.Context) (*CleanupResult, error) {
	cutoff := s.clock().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	old, err := s.uploads.ListOlderThan(ctx, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "select old uploads")
	}

	res := &CleanupResult{Found: len(old)}
	s.logger.Info().Int("found", len(old)).Time("cutoff", cutoff).Msg("cleaning up uploads")
	if len(old) == 0 {
		return res, nil
	}

	keys := make([]string, 0, len(old))
	for _, u := range old {
		keys = append(keys, u.FilePath)
	}

	switch {
	case s.storage == nil:
		s.logger.Warn().Msg("object storage not configured, keeping files")
	default:
		if err := s.storage.DeleteObjects(ctx, keys); err != nil {
			s.logger.Error().Err(err).Msg("failed to delete files from storage")
		} else {
			res.FilesDeleted = len(keys)
		}
	}

	n, err := s.uploads.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return res, errors.Wrap(err, "delete upload records")
	}
	res.RecordsDeleted = n

	s.logger.Info().
		Int("files_deleted", res.FilesDeleted).
		Int64("records_deleted", n).
		Msg("upload cleanup completed")
	return res, nil
}
