package handler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	ws "github.com/reelcraft/api/internal/websocket"
	"github.com/reelcraft/api/pkg/response"
)

// Routes bundles what Register mounts on the app
type Routes struct {
	Jobs    *JobHandler
	Stages  *StageHandler
	Uploads *UploadHandler
	Health  *HealthHandler
	Hub     *ws.Hub

	// UserAuth guards /api, ServiceAuth guards /functions/v1.
	UserAuth    fiber.Handler
	ServiceAuth fiber.Handler

	JobsLimit    fiber.Handler
	UploadsLimit fiber.Handler
}

// Register mounts every route on app
func Register(app *fiber.App, r Routes) {
	app.Get("/health", r.Health.Live)
	app.Get("/healthz", r.Health.Ready)

	// Stage invocation (service role only)
	functions := app.Group("/functions/v1", r.ServiceAuth)
	functions.Post("/job-processor", r.Stages.Process)

	api := app.Group("/api", r.UserAuth)

	jobs := api.Group("/jobs")
	jobs.Post("/", passThrough(r.JobsLimit), r.Jobs.Create)
	jobs.Get("/", r.Jobs.List)
	jobs.Get("/:jobId", r.Jobs.Get)
	jobs.Post("/:jobId/cancel", r.Jobs.Cancel)

	uploads := api.Group("/uploads", passThrough(r.UploadsLimit))
	uploads.Post("/presign", r.Uploads.Presign)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		r.Hub.HandleConnection(c, c.Params("jobId"))
	}))
}

func passThrough(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}

// ErrorHandler renders errors escaping the handlers in the API envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := response.CodeServiceError
		switch fe.Code {
		case fiber.StatusNotFound:
			code = response.CodeNotFound
		case fiber.StatusMethodNotAllowed, fiber.StatusUpgradeRequired, fiber.StatusRequestEntityTooLarge:
			code = response.CodeValidationError
		}
		return response.Error(c, fe.Code, code, fe.Message, nil)
	}
	return response.ServiceError(c, "Internal Server Error")
}
