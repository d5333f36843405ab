package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/callflow/pkg/cmd"
	"github.com/dukex/callflow/pkg/eventbus"
	"github.com/dukex/callflow/pkg/log"
	"github.com/dukex/callflow/pkg/otelhelper"
	"github.com/dukex/callflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "callflow-api",
		Usage:                 "Author, validate, compile and deploy call workflows",
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
				Usage:    "Persistence URL (a directory, file://, postgres:// or redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.BoolFlag{
				Name:    "audit-events",
				Usage:   "Log every workflow event consumed from the event bus",
				Value:   true,
				Sources: cli.EnvVars("AUDIT_EVENTS"),
			},
			&cli.StringFlag{
				Name:    "deploy-target",
				Usage:   "Where compiled definitions go (eventbus, http)",
				Sources: cli.EnvVars("DEPLOY_TARGET"),
			},
			&cli.StringFlag{
				Name:    "deploy-url",
				Usage:   "Runtime deployment endpoint for the http deploy target",
				Sources: cli.EnvVars("DEPLOY_URL"),
			},
			&cli.StringFlag{
				Name:    "classifier-url",
				Usage:   "Intent classifier endpoint used by AI conditions",
				Sources: cli.EnvVars("CLASSIFIER_URL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces with the OTLP HTTP exporter (configured through OTEL_* variables)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing Callflow API")

			registry, err := cmd.NewRegistry(logger)
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to create persistence: %w", err)
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if command.Bool("audit-events") {
				err = eventbus.NewAuditLog(logger).Attach(ctx, eventBus)
				if err != nil {
					return fmt.Errorf("failed to attach event audit log: %w", err)
				}
			}

			deployer, err := cmd.NewDeployer(command.String("deploy-target"), command.String("deploy-url"), eventBus, logger)
			if err != nil {
				return err
			}

			opts := []services.Option{
				services.WithEventBus(eventBus),
				services.WithDeployer(deployer),
				services.WithClassifier(cmd.NewClassifier(command.String("classifier-url"), logger)),
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "callflow-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				opts = append(opts, services.WithTracer(tracer))
			}

			workflows := services.NewWorkflows(persistence, registry, logger, opts...)

			return NewAPI(logger, workflows).Start(int(command.Int("port")))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("Callflow API stopped", "error", err)
		os.Exit(1)
	}
}
