// Package response writes the JSON bodies of the translation API. Every
// failure uses the same envelope: {"error":{"code","message","details"}}.
package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeDispatchError     = "DISPATCH_ERROR"
	CodeServiceError      = "SERVICE_ERROR"
	CodeAIError           = "AI_ERROR"
)

var statusForCode = map[string]int{
	CodeValidationError:   fiber.StatusBadRequest,
	CodeUnauthorized:      fiber.StatusUnauthorized,
	CodeForbidden:         fiber.StatusForbidden,
	CodeNotFound:          fiber.StatusNotFound,
	CodeConflict:          fiber.StatusConflict,
	CodeUnsupportedFormat: fiber.StatusUnsupportedMediaType,
	CodeRateLimited:       fiber.StatusTooManyRequests,
	CodeDispatchError:     fiber.StatusBadGateway,
	CodeServiceError:      fiber.StatusInternalServerError,
	CodeAIError:           fiber.StatusBadGateway,
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error writes the envelope with an explicit status.
func Error(c *fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Fail writes the envelope with the status registered for code.
func Fail(c *fiber.Ctx, code, message string, details any) error {
	status, ok := statusForCode[code]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return Error(c, status, code, message, details)
}

func ValidationError(c *fiber.Ctx, message string, fields map[string]string) error {
	if len(fields) == 0 {
		return Fail(c, CodeValidationError, message, nil)
	}
	return Fail(c, CodeValidationError, message, fields)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Fail(c, CodeUnauthorized, message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Fail(c, CodeForbidden, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Fail(c, CodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Fail(c, CodeConflict, message, nil)
}

func UnsupportedFormat(c *fiber.Ctx, message string) error {
	return Fail(c, CodeUnsupportedFormat, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Fail(c, CodeRateLimited, "Rate limit exceeded", nil)
}

// DispatchFailed reports a job that was created but never reached the queue.
// The job id lets the client query the FAILED record.
func DispatchFailed(c *fiber.Ctx, message, jobID string) error {
	return Fail(c, CodeDispatchError, message, map[string]string{"jobId": jobID})
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Fail(c, CodeServiceError, message, nil)
}

// AIError reports a failed inline provider call.
func AIError(c *fiber.Ctx, message string) error {
	return Fail(c, CodeAIError, message, nil)
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

// Accepted is used when the response carries a job still running in the background.
func Accepted(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
