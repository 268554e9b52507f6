package handler

import (
	"teamchat/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Router struct {
	handler Handler
	app     *fiber.App
	conf    *config.Config
	logger  *zap.SugaredLogger
}

func NewRouter(handler Handler, app *fiber.App, conf *config.Config, logger *zap.SugaredLogger) *Router {
	return &Router{
		logger:  logger,
		app:     app,
		conf:    conf,
		handler: handler,
	}
}

func (r *Router) RegisterRouter() {
	r.app.Get("/health", r.handler.HealthCheck)

	r.app.Use(
		recover.New(recover.Config{
			EnableStackTrace: true,
		}),
		logger.New(),
	)

	r.app.Route("/teamchat", func(router fiber.Router) {
		api := router.Group("/api")

		v1 := api.Group("/v1")

		v1.Post("/outbox/dispatch", r.handler.Dispatch)
		v1.Get("/outbox", r.handler.ListOutbox)
		v1.Get("/outbox/:id", r.handler.GetOutboxEvent)
		v1.Post("/apps/:id/manifest-sync", r.handler.SyncAppManifest)

		v1.Get("/notifications", r.handler.ListNotifications)
		v1.Patch("/notifications/:id/read", r.handler.MarkNotificationRead)
		v1.Put("/preferences", r.handler.UpsertPreference)

		v1.Post("/presence/online", r.handler.MarkOnline)
		v1.Post("/presence/offline", r.handler.MarkOffline)
		v1.Post("/presence/refresh", r.handler.RefreshPresence)
		v1.Get("/presence", r.handler.OnlineUsers)

		v1.Post("/typing/start", r.handler.StartTyping)
		v1.Post("/typing/stop", r.handler.StopTyping)
		v1.Get("/typing", r.handler.TypingIndicator)

		v1.Get("/audit", r.handler.ListAuditLogs)
	})
}
