package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowdeck/flowdeck/pkg/cmd"
	"github.com/flowdeck/flowdeck/pkg/log"
	"github.com/flowdeck/flowdeck/pkg/nodered"
	"github.com/flowdeck/flowdeck/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowdeck-api",
		Usage:                 "Save and publish workflow graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "runtime-url",
				Usage:    "Base URL of the Node-RED admin API",
				Required: true,
				Sources:  cli.EnvVars("NODE_RED_URL"),
			},
			&cli.StringFlag{
				Name:    "runtime-token",
				Usage:   "Bearer token for the Node-RED admin API",
				Sources: cli.EnvVars("NODE_RED_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry trace export",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowdeck API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			runtimeClient := nodered.NewClient(
				command.String("runtime-url"),
				command.String("runtime-token"),
				logger,
			)

			api := NewAPI(logger, persistence, runtimeClient, eventBus)

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "flowdeck-api")
				if err != nil {
					return err
				}

				runtimeClient.WithTracer(tracer)
				api.WithTracer(tracer)
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
