package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/middleware"
	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/pkg/response"
)

type JobHandler struct {
	service   *service.TranslationService
	validator *validator.Validate
	log       zerolog.Logger
}

func NewJobHandler(svc *service.TranslationService, v *validator.Validate, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

// Get handles GET /api/jobs/:jobId
// @Summary      Get translation job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.TranslationJob
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.UserContext(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, job)
}

// Cancel handles POST /api/jobs/:jobId/cancel
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	result, err := h.service.CancelJob(c.UserContext(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}

// QueueStats handles GET /api/queue/stats
func (h *JobHandler) QueueStats(c *fiber.Ctx) error {
	stats, err := h.service.QueueStats(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, stats)
}

// ReportProgress handles POST /internal/jobs/:jobId/progress
func (h *JobHandler) ReportProgress(c *fiber.Ctx) error {
	var req model.ReportProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.ReportProgress(c.UserContext(), c.Params("jobId"), &req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, job)
}
