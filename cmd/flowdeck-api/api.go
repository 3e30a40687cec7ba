// Package main provides the Flowdeck API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowdeck/flowdeck/pkg/eventbus"
	"github.com/flowdeck/flowdeck/pkg/nodered"
	"github.com/flowdeck/flowdeck/pkg/persistence"
	"github.com/flowdeck/flowdeck/pkg/services"
	"github.com/flowdeck/flowdeck/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	flows       nodered.FlowWriter
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	tracer      trace.Tracer
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	flows nodered.FlowWriter,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		flows:       flows,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		tracer:      noop.NewTracerProvider().Tracer("flowdeck-api"),
	}
}

func (a *API) WithTracer(tracer trace.Tracer) *API {
	a.tracer = tracer

	return a
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.eventBus, a.logger).WithTracer(a.tracer)
	publishingService := services.NewPublishing(a.persistence, a.flows, a.eventBus, a.logger).WithTracer(a.tracer)

	handlers := web.NewAPIHandlers(workflowService, publishingService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowdeck API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/save", handlers.SaveWorkflow)
	w.Post("/publish", handlers.PublishWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	app.Get("/node-types", handlers.GetNodeTypes)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
