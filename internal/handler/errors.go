package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/pkg/response"
)

// respondError maps domain errors to the API error envelope.
func respondError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	var (
		verr *model.ValidationError
		derr *model.DispatchError
	)

	switch {
	case errors.As(err, &verr):
		return response.ValidationError(c, "Validation failed", verr.Fields)
	case errors.As(err, &derr):
		return response.DispatchFailed(c, "Failed to queue translation job", derr.JobID)
	case errors.Is(err, model.ErrNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, model.ErrDocumentNotFound):
		return response.NotFound(c, "Document not found")
	case errors.Is(err, model.ErrInvalidProgress):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, model.ErrJobTerminal), errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrSettingsConflict):
		return response.Conflict(c, err.Error())
	case errors.Is(err, model.ErrUnsupportedFormat):
		return response.UnsupportedFormat(c, err.Error())
	case errors.Is(err, model.ErrProvider):
		return response.AIError(c, err.Error())
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return response.ServiceError(c, "Internal server error")
	}
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) map[string]string {
	var verr *model.ValidationError
	if errors.As(model.NewValidationError(err), &verr) {
		return verr.Fields
	}
	return nil
}
