package handler

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/service"
	"github.com/reelcraft/api/pkg/response"
)

// StageHandler exposes the pipeline to service-role callers
type StageHandler struct {
	pipeline  *service.Pipeline
	validator *validator.Validate
	logger    zerolog.Logger
}

func NewStageHandler(p *service.Pipeline, v *validator.Validate, logger zerolog.Logger) *StageHandler {
	return &StageHandler{
		pipeline:  p,
		validator: v,
		logger:    logger.With().Str("component", "stage_handler").Logger(),
	}
}

// Process handles POST /functions/v1/job-processor
// @Summary      Run pipeline stage
// @Description  Run one stage of a job and schedule the next one
// @Tags         Pipeline
// @Accept       json
// @Produce      json
// @Param        request body model.StageRequest true "Stage request"
// @Success      200 {object} model.StageResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /functions/v1/job-processor [post]
func (h *StageHandler) Process(c *fiber.Ctx) error {
	var req model.StageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	ctx := c.UserContext()
	result, err := h.pipeline.ProcessStage(ctx, req.JobID, req.Stage)
	if err != nil {
		if errors.Is(err, model.ErrStageFailed) {
			// No retry loop over HTTP: the job fails right away.
			if ferr := h.pipeline.FailJob(ctx, req.JobID, req.Stage, err); ferr != nil {
				h.logger.Error().Err(ferr).Str("job_id", req.JobID).Msg("failed to mark job as failed")
			}
		}
		return response.FromError(c, err)
	}

	return response.OK(c, result)
}
