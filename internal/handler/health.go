package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Check states reported by /healthz
const (
	CheckHealthy       = "healthy"
	CheckUnhealthy     = "unhealthy"
	CheckNotConfigured = "not_configured"
)

const healthTimeout = 5 * time.Second

// CheckFunc probes one dependency. A nil CheckFunc means the dependency is
// not configured.
type CheckFunc func(ctx context.Context) error

// HealthChecks lists the probes behind /healthz
type HealthChecks struct {
	Database CheckFunc
	Storage  CheckFunc
	AIWorker CheckFunc
	Redis    CheckFunc
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks"`
}

type HealthHandler struct {
	checks  HealthChecks
	version string
	logger  zerolog.Logger
	clock   func() time.Time
}

func NewHealthHandler(checks HealthChecks, version string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		version: version,
		logger:  logger.With().Str("component", "health").Logger(),
		clock:   time.Now,
	}
}

// Live handles GET /health
// @Summary      Liveness
// @Tags         Health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /healthz
// @Summary      Dependency health
// @Description  Probe database, storage, AI worker and Redis
// @Tags         Health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /healthz [get]
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	probes := map[string]CheckFunc{
		"database":  h.checks.Database,
		"storage":   h.checks.Storage,
		"ai_worker": h.checks.AIWorker,
		"redis":     h.checks.Redis,
	}

	var (
		mu     sync.Mutex
		g      errgroup.Group
		checks = make(map[string]string, len(probes))
	)
	for name, probe := range probes {
		if probe == nil {
			checks[name] = CheckNotConfigured
		}
	}
	for name, probe := range probes {
		if probe == nil {
			continue
		}
		g.Go(func() error {
			state := CheckHealthy
			if err := probe(ctx); err != nil {
				h.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
				state = CheckUnhealthy
			}
			mu.Lock()
			checks[name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	healthy := checks["database"] == CheckHealthy && checks["storage"] != CheckUnhealthy
	status, code := "healthy", fiber.StatusOK
	if !healthy {
		status, code = "unhealthy", fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(HealthResponse{
		Status:    status,
		Timestamp: h.clock().UTC().Format(time.RFC3339),
		Version:   h.version,
		Checks:    checks,
	})
}
