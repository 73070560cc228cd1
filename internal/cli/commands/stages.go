package commands

import (
	"github.com/spf13/cobra"

	"apartment-valuation-service/internal/core/domain"
)

// NewBaselineCommand creates the baseline command.
func NewBaselineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline",
		Short: "Rebuild the neighbourhood baseline table from open data",
		Long: `Fetch the neighbourhood price snapshot and the multi-year history from the
Barcelona open-data portal, project each neighbourhood's price per square
metre and replace the stored baseline table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Baseline.Build(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"key":           domain.BaselineKey,
				"neighborhoods": len(records),
			})
		},
	}
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic raw listings dataset",
		Long: `Sample synthetic listings around the stored baseline table and write them
as a new raw dataset. Sample count, seed and neighbourhood weighting come
from PIPELINE_SAMPLES, PIPELINE_SEED and PIPELINE_WEIGHTING.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Generator.Generate(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

// ProcessOptions holds options for the process command.
type ProcessOptions struct {
	RawKey string
}

// NewProcessCommand creates the process command.
func NewProcessCommand() *cobra.Command {
	opts := &ProcessOptions{}

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Encode a raw dataset into train/test splits",
		Example: `  # Process the newest raw dataset
  valuationctl process

  # Process a specific one
  valuationctl process --raw-key raw/2025-05-06-07-08-09/housing_data.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Processor.Process(cmd.Context(), opts.RawKey)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&opts.RawKey, "raw-key", "", "Raw dataset key (default: newest)")

	return cmd
}

// TrainOptions holds options for the train command.
type TrainOptions struct {
	RunID string
}

// NewTrainCommand creates the train command.
func NewTrainCommand() *cobra.Command {
	opts := &TrainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and evaluate a model on a processed run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Trainer.Train(cmd.Context(), opts.RunID)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&opts.RunID, "run", "r", "", "Run id to train")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}
