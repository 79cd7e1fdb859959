package main

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reelcraft/api/internal/handler"
	"github.com/reelcraft/api/internal/middleware"
	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/repository"
	ws "github.com/reelcraft/api/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

var withWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		g, gctx := errgroup.WithContext(ctx)
		if err := a.serve(gctx, g); err != nil {
			return err
		}
		if withWorker {
			if err := a.work(gctx, g); err != nil {
				return err
			}
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the queue worker, scheduler and outbox relay")
}

// serve starts the hub, the realtime subscription and the Fiber app on g.
func (a *app) serve(ctx context.Context, g *errgroup.Group) error {
	verifier, err := a.verifier()
	if err != nil {
		return err
	}

	hub := ws.NewHub(a.log)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		err := a.bus.Subscribe(ctx, func(n model.JobNotification) {
			hub.Notify(ctx, n)
		})
		if err != nil {
			// Live updates are lost, the API keeps serving
			a.log.Error().Err(err).Msg("job updates subscription ended")
		}
		return nil
	})

	validate := validator.New()
	rateLimiter := middleware.NewRateLimiter(a.rdb, a.log)

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler,
		BodyLimit:             4 * 1024 * 1024,
		DisableStartupMessage: !a.cfg.IsDevelopment(),
	})

	fiberApp.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(a.cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
	}
	fiberApp.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
	}))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handler.Register(fiberApp, handler.Routes{
		Jobs:         handler.NewJobHandler(a.jobSvc, validate),
		Stages:       handler.NewStageHandler(a.pipeline, validate, a.log),
		Uploads:      handler.NewUploadHandler(a.uploadSvc, validate),
		Health:       handler.NewHealthHandler(a.healthChecks(), a.cfg.Server.Version, a.log),
		Hub:          hub,
		UserAuth:     middleware.NewAuthMiddleware(verifier).Authenticate(),
		ServiceAuth:  middleware.ServiceRole(a.cfg.Supabase.ServiceRoleKey),
		JobsLimit:    rateLimiter.JobsLimit(a.cfg.RateLimit.JobsPerHour),
		UploadsLimit: rateLimiter.UploadsLimit(a.cfg.RateLimit.UploadsPerHour),
	})

	g.Go(func() error {
		addr := ":" + a.cfg.Server.Port
		a.log.Info().Str("addr", addr).Msg("server starting")
		return fiberApp.Listen(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info().Msg("shutting down server")
		return fiberApp.ShutdownWithTimeout(shutdownTimeout)
	})
	return nil
}

func (a *app) healthChecks() handler.HealthChecks {
	checks := handler.HealthChecks{
		Redis: func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() },
	}
	if p, ok := a.jobs.(repository.Pinger); ok {
		checks.Database = p.PingContext
	}
	if a.storage != nil {
		checks.Storage = a.storage.Ping
	}
	if a.ai != nil {
		checks.AIWorker = a.ai.HealthCheck
	}
	return checks
}
