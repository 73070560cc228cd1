// Package cli provides the valuationctl command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apartment-valuation-service/internal/cli/commands"
)

// Version is set at build time.
var Version = "dev"

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "valuationctl",
		Short: "Run the apartment valuation pipeline",
		Long: `valuationctl runs the offline stages of the valuation pipeline against
the configured artifact store: baseline, generate, process, train, compare
and promote. Configuration comes from the environment or a .env file, the
same way the API server reads it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(commands.NewBaselineCommand())
	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(commands.NewProcessCommand())
	rootCmd.AddCommand(commands.NewTrainCommand())
	rootCmd.AddCommand(commands.NewCompareCommand())
	rootCmd.AddCommand(commands.NewPromoteCommand())
	rootCmd.AddCommand(commands.NewProductionCommand())
	rootCmd.AddCommand(commands.NewPipelineCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
