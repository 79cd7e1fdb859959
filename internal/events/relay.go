package events

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/storage/postgres"
)

// OutboxStore is the subset of the outbox repository the relay needs.
type OutboxStore interface {
	GetPending(ctx context.Context, limit int) ([]postgres.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// Publisher sends one keyed message to the event stream.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Relay polls job_outbox and forwards pending events to Kafka. Delivery is
// at-least-once: an event published but not marked goes out again.
type Relay struct {
	store     OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

type RelayConfig struct {
	Store     OutboxStore
	Publisher Publisher
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewRelay(cfg RelayConfig) (*Relay, error) {
	if cfg.Store == nil {
		return nil, errors.New("outbox store is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.Newf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.Newf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Relay{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "outbox").Logger(),
	}, nil
}

// Run blocks until ctx is canceled. Batch errors are logged and the loop
// keeps going.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.interval).
		Int("batch_size", r.batchSize).
		Msg("outbox relay started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil

		case <-ticker.C:
			if _, err := r.RelayBatch(ctx); err != nil {
				r.logger.Error().Err(err).Msg("failed to relay batch")
			}
		}
	}
}

// RelayBatch publishes one batch and returns how many events were marked.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	records, err := r.store.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "get pending records")
	}
	if len(records) == 0 {
		return 0, nil
	}

	var published, failed, marked int
	for _, record := range records {
		log := r.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("job_id", record.JobID).
			Int64("outbox_id", record.ID).
			Logger()

		if err := r.publisher.Publish(ctx, record.JobID, record.Payload); err != nil {
			log.Error().Err(err).Msg("failed to publish event")
			failed++
			continue
		}
		published++

		if err := r.store.MarkProcessed(ctx, record.ID); err != nil {
			log.Warn().Err(err).Msg("failed to mark event as processed")
			continue
		}
		marked++
	}

	r.logger.Info().
		Int("total", len(records)).
		Int("published", published).
		Int("failed", failed).
		Int("marked", marked).
		Msg("batch relayed")

	return marked, nil
}
