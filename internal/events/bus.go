package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/model"
)

// JobUpdatesChannel is the Redis pub/sub channel carrying job notifications.
const JobUpdatesChannel = "reelcraft:job-updates"

// RedisBus fans job notifications out to every API process over Redis
// pub/sub, so a stage run by a queue worker reaches sockets held elsewhere.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	logger  zerolog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRedisBus(rdb *redis.Client, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		rdb:        rdb,
		channel:    JobUpdatesChannel,
		logger:     logger.With().Str("component", "event_bus").Logger(),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Notify publishes n. Failures are logged; realtime delivery is best effort.
func (b *RedisBus) Notify(ctx context.Context, n model.JobNotification) {
	data, err := json.Marshal(n)
	if err != nil {
		b.logger.Error().Err(err).Str("job_id", n.JobID).Msg("marshal notification")
		return
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warn().Err(err).Str("job_id", n.JobID).Msg("publish notification")
	}
}

// Subscribe calls handle for every notification until ctx is canceled. A
// lost or failed subscription is retried with exponential backoff.
func (b *RedisBus) Subscribe(ctx context.Context, handle func(model.JobNotification)) error {
	backoff := b.minBackoff
	for {
		subscribed, err := b.subscribe(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = b.minBackoff
		}
		b.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("job updates subscription lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > b.maxBackoff {
			backoff = b.maxBackoff
		}
	}
}

// subscribe runs one subscription and reports whether it was established.
func (b *RedisBus) subscribe(ctx context.Context, handle func(model.JobNotification)) (bool, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, errors.Wrap(err, "subscribe job updates")
	}
	b.logger.Info().Str("channel", b.channel).Msg("subscribed to job updates")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-ch:
			if !ok {
				return true, errors.New("job updates channel closed")
			}
			var n model.JobNotification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				b.logger.Warn().Err(err).Msg("drop malformed notification")
				continue
			}
			handle(n)
		}
	}
}
