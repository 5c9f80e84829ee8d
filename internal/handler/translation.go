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

type TranslationHandler struct {
	service   *service.TranslationService
	validator *validator.Validate
	log       zerolog.Logger
}

func NewTranslationHandler(svc *service.TranslationService, v *validator.Validate, log zerolog.Logger) *TranslationHandler {
	return &TranslationHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

// TranslateText handles POST /api/translate/text
// @Summary      Translate text
// @Description  Translate inline (mode=fast) or through a tracked job (mode=queued)
// @Tags         Translation
// @Accept       json
// @Produce      json
// @Param        request body model.TranslateTextRequest true "Text translation request"
// @Success      200 {object} model.TranslationResult
// @Success      202 {object} model.TranslationResult
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/translate/text [post]
func (h *TranslationHandler) TranslateText(c *fiber.Ctx) error {
	var req model.TranslateTextRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.TranslateText(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, h.log, err)
	}

	if result.Mode == model.ModeQueued {
		return response.Accepted(c, result)
	}
	return response.OK(c, result)
}

// Improve handles POST /api/translate/improve
func (h *TranslationHandler) Improve(c *fiber.Ctx) error {
	var req model.ImproveTranslationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.ImproveTranslation(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, h.log, err)
	}

	if result.Mode == model.ModeQueued {
		return response.Accepted(c, result)
	}
	return response.OK(c, result)
}
