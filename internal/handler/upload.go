package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelcraft/api/internal/middleware"
	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/service"
	"github.com/reelcraft/api/pkg/response"
)

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Presign handles POST /api/uploads/presign
// @Summary      Presign upload
// @Description  Get a signed URL to upload a media file straight to storage
// @Tags         Upload
// @Accept       json
// @Produce      json
// @Param        request body model.PresignRequest true "Presign request"
// @Success      200 {object} model.PresignResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/uploads/presign [post]
func (h *UploadHandler) Presign(c *fiber.Ctx) error {
	var req model.PresignRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if !model.IsAllowedUploadType(req.FileType) {
		return response.ValidationError(c, "Invalid file type", map[string]interface{}{
			"fileType": req.FileType,
			"allowed":  model.AllowedUploadTypes,
		})
	}
	if req.FileSize > model.MaxUploadSize {
		return response.ValidationError(c, "File size exceeds 100MB limit", map[string]interface{}{
			"maxSize":  model.MaxUploadSize,
			"fileSize": req.FileSize,
		})
	}

	result, err := h.service.Presign(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OK(c, result)
}
