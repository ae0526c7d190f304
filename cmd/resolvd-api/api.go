// Package main provides the Resolvd API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/resolvd/resolvd/pkg/eventbus"
	"github.com/resolvd/resolvd/pkg/persistence"
	"github.com/resolvd/resolvd/pkg/services"
	"github.com/resolvd/resolvd/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	auditService := services.NewAudit(a.eventBus, a.logger)
	flowService := services.NewFlow(a.persistence, auditService)
	versionService := services.NewVersion(a.persistence, auditService)
	graphService := services.NewGraph(a.persistence, auditService)
	sessionService := services.NewSession(a.persistence)
	analyticsService := services.NewAnalytics(a.persistence)

	handlers := web.NewAPIHandlers(
		flowService,
		versionService,
		graphService,
		sessionService,
		analyticsService,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Resolvd API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
