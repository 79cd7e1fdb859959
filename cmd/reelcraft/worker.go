package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reelcraft/api/internal/events"
	"github.com/reelcraft/api/internal/logger"
	"github.com/reelcraft/api/internal/queue"
	"github.com/reelcraft/api/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue worker, cleanup scheduler and outbox relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		g, gctx := errgroup.WithContext(ctx)
		if err := a.work(gctx, g); err != nil {
			return err
		}
		return g.Wait()
	},
}

// work starts the asynq server, the periodic scheduler and, with Postgres
// and Kafka configured, the outbox relay on g.
func (a *app) work(ctx context.Context, g *errgroup.Group) error {
	redisOpt := asynqRedisOpt(a.rdb.Options())
	asynqLog := logger.NewAsynqLogger(logger.Component(a.log, "asynq"))
	asynqLevel := logger.AsynqLevel(a.cfg.Server.LogLevel)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: a.cfg.Pipeline.Concurrency,
		Queues: map[string]int{
			queue.QueuePipeline:    9,
			queue.QueueMaintenance: 1,
		},
		Logger:   asynqLog,
		LogLevel: asynqLevel,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeStage, worker.NewStageWorker(a.pipeline, a.log).ProcessTask)
	mux.HandleFunc(queue.TaskTypeCleanup, worker.NewCleanupWorker(a.uploadSvc, a.log).ProcessTask)

	if err := srv.Start(mux); err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		srv.Shutdown()
		return nil
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   asynqLog,
		LogLevel: asynqLevel,
	})
	entryID, err := queue.RegisterCleanup(scheduler, a.cfg.Pipeline.CleanupCron)
	if err != nil {
		return err
	}
	a.log.Info().Str("entry_id", entryID).Str("cron", a.cfg.Pipeline.CleanupCron).Msg("upload cleanup scheduled")
	if err := scheduler.Start(); err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		scheduler.Shutdown()
		return nil
	})

	return a.startRelay(ctx, g)
}

func (a *app) startRelay(ctx context.Context, g *errgroup.Group) error {
	if a.outbox == nil || !a.cfg.Kafka.Enabled() {
		a.log.Info().Msg("outbox relay disabled")
		return nil
	}

	producer := events.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
	a.closers = append(a.closers, producer.Close)

	relay, err := events.NewRelay(events.RelayConfig{
		Store:     a.outbox,
		Publisher: producer,
		Interval:  a.cfg.Outbox.Interval,
		BatchSize: a.cfg.Outbox.BatchSize,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}
	g.Go(func() error { return relay.Run(ctx) })
	return nil
}
