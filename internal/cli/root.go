// Package cli provides the Cobra-based commands for the boldfit tool:
// planning the BOLD fitting workflow from a dataset manifest and rendering
// the assembled graph.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "boldfit",
	Short: "BOLD fit workflow assembly",
	Long: `boldfit builds the conditional preprocessing graph for a BOLD series:
it resolves single-band references and fieldmap estimators from a dataset
manifest, decides which fitting stages are already covered by precomputed
derivatives, and assembles the remaining stages into an executable DAG.

The graph is a plan, not a run; hand it to an execution engine.`,
	Example: `  # Plan the fit for one series, reusing precomputed derivatives
  boldfit plan --dataset dataset.json --precomputed derived.json \
      --bold sub-01/func/sub-01_task-nback_bold.nii.gz

  # Render the assembled graph as Graphviz DOT
  boldfit graph --dataset dataset.json --bold sub-01/func/sub-01_task-nback_bold.nii.gz --format dot`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to JSON configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
