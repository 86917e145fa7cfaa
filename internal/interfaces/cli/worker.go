package cli

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agencypulse/crosssell-intelligence/internal/application/ingestion"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/messaging/kafka"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the ingestion worker",
		Long: `Worker consumes raw policy-row batches from the ingest topic, scores them,
persists the resulting opportunities, and publishes scored events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log, appOptions{
				withProducer: true,
				withArchive:  true,
			})
			if err != nil {
				return err
			}
			defer a.close()

			a.watchWeights(ctx)

			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.IngestTopic, log.Named("consumer"))
			defer consumer.Close()

			log.Info("ingestion worker started",
				logging.String("topic", cfg.Kafka.IngestTopic),
				logging.String("group", cfg.Kafka.GroupID))

			handler := ingestHandler(a, cfg.Kafka.IngestTopic, log.Named("worker"))
			if err := consumer.Run(ctx, handler); err != nil {
				return err
			}
			log.Info("ingestion worker stopped")
			return nil
		},
	}
}

// ingestHandler adapts consumed ingest events to the ingestion service.
// Malformed payloads and validation errors are dropped (redelivery cannot fix
// them); persistence errors propagate so the message stays uncommitted.
func ingestHandler(a *app, topic string, log logging.Logger) kafka.Handler {
	return func(ctx context.Context, env kafka.EventEnvelope) error {
		var payload kafka.IngestRowsPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			a.metrics.EventsConsumedTotal.WithLabelValues(topic, "dropped").Inc()
			log.Error("dropping undecodable ingest payload",
				logging.String("event_id", env.EventID), logging.Err(err))
			return nil
		}

		result, err := a.ingestion.IngestRows(ctx, &ingestion.IngestInput{
			AgencyID: payload.AgencyID,
			BatchID:  payload.BatchID,
			Rows:     payload.Rows,
		})
		if err != nil {
			if errors.IsValidation(err) || errors.IsCode(err, errors.CodeIngestionEmptyBatch) {
				a.metrics.EventsConsumedTotal.WithLabelValues(topic, "dropped").Inc()
				log.Warn("dropping invalid ingest batch",
					logging.String("event_id", env.EventID),
					logging.String("batch_id", payload.BatchID),
					logging.Err(err))
				return nil
			}
			a.metrics.EventsConsumedTotal.WithLabelValues(topic, "error").Inc()
			return err
		}

		a.metrics.EventsConsumedTotal.WithLabelValues(topic, "ok").Inc()
		log.Info("ingest batch processed",
			logging.String("batch_id", result.BatchID),
			logging.Int("created", result.Created),
			logging.Int("updated", result.Updated),
			logging.Int("dropped", result.Dropped),
			logging.Int("failed", result.Failed))
		return nil
	}
}
