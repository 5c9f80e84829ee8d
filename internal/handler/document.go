package handler

import (
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/middleware"
	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/pkg/response"
)

type DocumentHandler struct {
	service   *service.TranslationService
	validator *validator.Validate
	log       zerolog.Logger
}

func NewDocumentHandler(svc *service.TranslationService, v *validator.Validate, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

// Upload handles POST /api/documents
// @Summary      Upload a document
// @Description  Store a text document and start translating it
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file            formData file   true  "Document"
// @Param        sourceLanguage  formData string true  "Source language code"
// @Param        targetLanguage  formData string true  "Target language code"
// @Param        style           formData string false "Translation style"
// @Param        specialization  formData string false "Domain specialization"
// @Success      201 {object} model.UploadDocumentResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      415 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/documents [post]
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	var req model.UploadDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid form data", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	result, err := h.service.UploadDocument(c.UserContext(), middleware.GetUserID(c), fileHeader.Filename, data, &req)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return response.Created(c, result)
}

// StartTranslation handles POST /api/documents/:documentId/translate
func (h *DocumentHandler) StartTranslation(c *fiber.Ctx) error {
	job, err := h.service.StartTranslation(c.UserContext(), middleware.GetUserID(c), c.Params("documentId"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Accepted(c, job)
}

// Retranslate handles POST /api/documents/:documentId/retranslate
func (h *DocumentHandler) Retranslate(c *fiber.Ctx) error {
	var req model.RetranslateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.RetranslateDocument(c.UserContext(), middleware.GetUserID(c), c.Params("documentId"), &req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Accepted(c, job)
}
