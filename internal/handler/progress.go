package handler

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/service"
	ws "github.com/seekhub/translator/internal/websocket"
)

// ProgressHandler streams translation progress for one subject over a WebSocket.
type ProgressHandler struct {
	service *service.TranslationService
	hub     *ws.Hub
	log     zerolog.Logger
}

func NewProgressHandler(svc *service.TranslationService, hub *ws.Hub, log zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{service: svc, hub: hub, log: log}
}

// Upgrade rejects plain HTTP requests on websocket routes.
func (h *ProgressHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream handles GET /ws/progress/:subjectId. The subscription is taken
// before the active-job lookup so no event is lost in between; a subject
// with nothing running gets a normal close right away.
func (h *ProgressHandler) Stream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		subjectID := c.Params("subjectId")
		userID, _ := c.Locals("userId").(string)

		sub := h.hub.Subscribe(subjectID)

		job, err := h.service.ActiveJobForSubject(context.Background(), subjectID)
		switch {
		case err != nil:
			h.log.Error().Err(err).Str("subject_id", subjectID).Msg("failed to look up active job")
			sub.Close()
		case job == nil:
			sub.Close()
		case job.UserID != "" && userID != "" && job.UserID != userID:
			sub.Close()
		}

		h.hub.HandleConnection(c, sub)
	})
}
