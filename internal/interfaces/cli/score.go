package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agencypulse/crosssell-intelligence/internal/config"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

type scoreOptions struct {
	input        string
	weightsFile  string
	blendWeight  float64
	minBaseScore int
	topN         int
	noLead       bool
	phoneRegion  string
	breakdown    bool
}

// newScoreCommand scores a record file offline, without touching any
// infrastructure.  Useful for tuning weight profiles against a book export.
func newScoreCommand(_ *rootOptions) *cobra.Command {
	so := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a JSON record file offline",
		Long: `Score reads a JSON array of policy records, runs the full scoring and
segmentation pipeline in-process, and writes the ranked result to stdout.
Pass "-" as the input to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(so.input)
			if err != nil {
				return err
			}

			weights := crosssell.DefaultWeights()
			if so.weightsFile != "" {
				if weights, err = config.LoadWeights(so.weightsFile); err != nil {
					return err
				}
			}

			scorerOpts := []crosssell.ScorerOption{crosssell.WithWeights(weights)}
			if so.phoneRegion != "" {
				scorerOpts = append(scorerOpts, crosssell.WithPhoneRegion(so.phoneRegion))
			}
			orch := crosssell.NewOrchestrator(
				crosssell.NewEnhancer(crosssell.NewScorer(scorerOpts...)))

			useLead := !so.noLead
			result, err := orch.Run(cmd.Context(), records, crosssell.BatchOptions{
				Enhance: crosssell.EnhanceOptions{
					UseLeadScoring:   useLead,
					BlendWeight:      so.blendWeight,
					MinBaseScore:     so.minBaseScore,
					IncludeBreakdown: so.breakdown,
				},
				TopN: so.topN,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&so.input, "input", "i", "-", "record file (JSON array), or - for stdin")
	cmd.Flags().StringVarP(&so.weightsFile, "weights", "w", "", "weight profile YAML file")
	cmd.Flags().Float64Var(&so.blendWeight, "blend-weight", 0.6, "lead-score blend weight (0..1)")
	cmd.Flags().IntVar(&so.minBaseScore, "min-base-score", 30, "base score floor for lead enhancement")
	cmd.Flags().IntVar(&so.topN, "top-n", 0, "keep only the N highest-scoring records (0 = all)")
	cmd.Flags().BoolVar(&so.noLead, "no-lead-scoring", false, "disable the lead-scoring enhancement pass")
	cmd.Flags().StringVar(&so.phoneRegion, "phone-region", "US", "default region for phone validation")
	cmd.Flags().BoolVar(&so.breakdown, "breakdown", false, "include per-dimension score breakdowns")
	return cmd
}

func readRecords(path string) ([]*crosssell.Record, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "failed to read record file")
	}

	var records []*crosssell.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "record file is not a JSON array of records")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "record file contains no records")
	}
	return records, nil
}
