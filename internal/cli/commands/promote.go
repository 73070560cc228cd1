package commands

import (
	"github.com/spf13/cobra"
)

// PromoteOptions holds options for the compare and promote commands.
type PromoteOptions struct {
	RunID string
	Force bool
}

// NewCompareCommand creates the compare command.
func NewCompareCommand() *cobra.Command {
	opts := &PromoteOptions{}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a trained run against the production model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Promotion.Compare(cmd.Context(), opts.RunID)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&opts.RunID, "run", "r", "", "Run id to compare")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

// NewPromoteCommand creates the promote command.
func NewPromoteCommand() *cobra.Command {
	opts := &PromoteOptions{}

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote a trained run if it beats production",
		Long: `Compare the run against the current production model and swap the
production pointer when its RMSE is strictly lower. --force skips the
comparison.`,
		Example: `  valuationctl promote --run 2025-05-06-07-08-09
  valuationctl promote --run 2025-05-06-07-08-09 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if opts.Force {
				p, err := a.Promotion.ForcePromote(cmd.Context(), opts.RunID)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"promoted": true, "pointer": p})
			}

			res, err := a.Promotion.CompareAndPromote(cmd.Context(), opts.RunID)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&opts.RunID, "run", "r", "", "Run id to promote")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Promote without comparing")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

// NewProductionCommand creates the production command.
func NewProductionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "production",
		Short: "Show the production model pointer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Promotion.Production(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
}
