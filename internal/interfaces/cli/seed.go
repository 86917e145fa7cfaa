package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/agencypulse/crosssell-intelligence/internal/application/ingestion"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// newSeedCommand loads a record file straight into Postgres through the
// ingestion service, bypassing Kafka and object storage.  Meant for local
// development and demo environments.
func newSeedCommand(opts *rootOptions) *cobra.Command {
	var (
		input    string
		agencyID string
		batchID  string
		reset    bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database from a JSON record file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agencyID == "" {
				return errors.New(errors.CodeInvalidParam, "agency id is required")
			}
			records, err := readRecords(input)
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := buildApp(ctx, cfg, log, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if reset {
				removed, err := a.opportunity.Clear(ctx, agencyID)
				if err != nil {
					return err
				}
				log.Info("cleared existing opportunities",
					logging.String("agency_id", agencyID),
					logging.Int64("removed", removed))
			}

			rows := make([]json.RawMessage, 0, len(records))
			for _, r := range records {
				raw, err := json.Marshal(r)
				if err != nil {
					return errors.Wrap(err, errors.CodeInternal, "failed to re-encode record")
				}
				rows = append(rows, raw)
			}

			result, err := a.ingestion.IngestRows(ctx, &ingestion.IngestInput{
				AgencyID: agencyID,
				BatchID:  batchID,
				Rows:     rows,
			})
			if err != nil {
				return err
			}

			log.Info("seed complete",
				logging.String("agency_id", agencyID),
				logging.String("batch_id", result.BatchID),
				logging.Int("created", result.Created),
				logging.Int("updated", result.Updated),
				logging.Int("dropped", result.Dropped),
				logging.Int("failed", result.Failed))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "record file (JSON array), or - for stdin")
	cmd.Flags().StringVar(&agencyID, "agency", "", "agency id to seed under (required)")
	cmd.Flags().StringVar(&batchID, "batch", "", "batch id (generated when empty)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the agency's existing opportunities first")
	return cmd
}
