package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, h fiber.Handler) (int, ErrorResponse) {
	t.Helper()

	app := fiber.New()
	app.Get("/", h)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	return resp.StatusCode, body
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		name   string
		h      fiber.Handler
		status int
		code   string
	}{
		{"validation", func(c *fiber.Ctx) error { return ValidationError(c, "bad", nil) }, 400, CodeValidationError},
		{"unauthorized", func(c *fiber.Ctx) error { return Unauthorized(c, "no") }, 401, CodeUnauthorized},
		{"conflict", func(c *fiber.Ctx) error { return Conflict(c, "done") }, 409, CodeConflict},
		{"unsupported", func(c *fiber.Ctx) error { return UnsupportedFormat(c, "pdf") }, 415, CodeUnsupportedFormat},
		{"rate limited", RateLimited, 429, CodeRateLimited},
		{"ai", func(c *fiber.Ctx) error { return AIError(c, "down") }, 502, CodeAIError},
		{"unknown code", func(c *fiber.Ctx) error { return Fail(c, "WHATEVER", "x", nil) }, 500, "WHATEVER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, tt.h)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestDispatchFailed(t *testing.T) {
	status, body := call(t, func(c *fiber.Ctx) error {
		return DispatchFailed(c, "queue down", "job-1")
	})
	assert.Equal(t, 502, status)
	assert.Equal(t, CodeDispatchError, body.Error.Code)
	assert.Equal(t, map[string]any{"jobId": "job-1"}, body.Error.Details)
}

func TestValidationError_Fields(t *testing.T) {
	_, body := call(t, func(c *fiber.Ctx) error {
		return ValidationError(c, "Validation failed", map[string]string{"Text": "is required"})
	})
	assert.Equal(t, map[string]any{"Text": "is required"}, body.Error.Details)
}
