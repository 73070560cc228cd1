package commands

import (
	"github.com/spf13/cobra"

	"apartment-valuation-service/internal/core/services"
)

// PipelineOptions holds options for the pipeline command.
type PipelineOptions struct {
	SkipBaseline bool
}

// NewPipelineCommand creates the pipeline command.
func NewPipelineCommand() *cobra.Command {
	opts := &PipelineOptions{}

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run every stage once, promoting the new model if it is better",
		Example: `  # Full refresh
  valuationctl pipeline

  # Reuse the stored baseline table
  valuationctl pipeline --skip-baseline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.Run(cmd.Context(), services.PipelineOptions{SkipBaseline: opts.SkipBaseline})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipBaseline, "skip-baseline", false, "Reuse the stored baseline table")

	return cmd
}
