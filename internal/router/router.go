// Package router builds the fiber application shared by the server binary
// and the end-to-end tests.
package router

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/handler"
	"github.com/seekhub/translator/internal/middleware"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/internal/store"
	ws "github.com/seekhub/translator/internal/websocket"
	"github.com/seekhub/translator/pkg/response"
)

type Deps struct {
	Config      *config.Config
	Service     *service.TranslationService
	Hub         *ws.Hub
	RateLimiter *middleware.RateLimiter
	// Health is pinged by /health; nil reports ok
	Health store.Pinger
	Logger zerolog.Logger
	// AccessLog disables the request log when false
	AccessLog bool
}

// New creates the fiber app with every route registered.
func New(d Deps) *fiber.App {
	cfg := d.Config
	validate := validator.New()

	bodyLimit := cfg.Server.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 20
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    bodyLimit * 1024 * 1024,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if d.Health != nil {
			if err := d.Health.Ping(c.UserContext()); err != nil {
				// jobs fall back to memory; the API keeps serving
				return c.JSON(fiber.Map{"status": "degraded", "store": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	documentHandler := handler.NewDocumentHandler(d.Service, validate, d.Logger)
	translationHandler := handler.NewTranslationHandler(d.Service, validate, d.Logger)
	jobHandler := handler.NewJobHandler(d.Service, validate, d.Logger)
	progressHandler := handler.NewProgressHandler(d.Service, d.Hub, d.Logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	documentLimit := passThrough
	translateLimit := passThrough
	if d.RateLimiter != nil {
		documentLimit = d.RateLimiter.DocumentLimit(cfg.RateLimit.DocumentsPerHour)
		translateLimit = d.RateLimiter.TranslateLimit(cfg.RateLimit.TranslatePerMin)
	}

	api := app.Group("/api", authMiddleware.Authenticate())

	documents := api.Group("/documents", documentLimit)
	documents.Post("/", documentHandler.Upload)
	documents.Post("/:documentId/translate", documentHandler.StartTranslation)
	documents.Post("/:documentId/retranslate", documentHandler.Retranslate)

	translate := api.Group("/translate", translateLimit)
	translate.Post("/text", translationHandler.TranslateText)
	translate.Post("/improve", translationHandler.Improve)

	jobs := api.Group("/jobs")
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)

	api.Get("/queue/stats", jobHandler.QueueStats)

	internal := app.Group("/internal", middleware.InternalOnly(cfg.Internal.Token))
	internal.Post("/jobs/:jobId/progress", jobHandler.ReportProgress)

	app.Use("/ws", progressHandler.Upgrade, authMiddleware.Authenticate())
	app.Get("/ws/progress/:subjectId", progressHandler.Stream())

	return app
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
