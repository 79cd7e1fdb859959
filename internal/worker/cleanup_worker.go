package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/service"
)

// UploadCleaner removes stale uploads.
type UploadCleaner interface {
	Cleanup(ctx context.Context) (*service.CleanupResult, error)
}

// CleanupWorker processes the periodic uploads:cleanup task
type CleanupWorker struct {
	uploads UploadCleaner
	logger  zerolog.Logger
}

func NewCleanupWorker(uploads UploadCleaner, logger zerolog.Logger) *CleanupWorker {
	return &CleanupWorker{
		uploads: uploads,
		logger:  logger.With().Str("component", "cleanup_worker").Logger(),
	}
}

func (w *CleanupWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	res, err := w.uploads.Cleanup(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("upload cleanup failed")
		return err
	}
	w.logger.Info().
		Int("found", res.Found).
		Int("files_deleted", res.FilesDeleted).
		Int64("records_deleted", res.RecordsDeleted).
		Msg("upload cleanup done")
	return nil
}
