package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/htwangtw/fmriprep/internal/bids"
	"github.com/htwangtw/fmriprep/internal/config"
	"github.com/htwangtw/fmriprep/internal/fieldmap"
	"github.com/htwangtw/fmriprep/internal/fit"
	"github.com/htwangtw/fmriprep/internal/logging"
	"github.com/htwangtw/fmriprep/internal/progress"
	"github.com/htwangtw/fmriprep/internal/wf"
)

var (
	datasetPath     string
	precomputedPath string
	boldFiles       []string
	hasFieldmap     bool
	outputFormat    string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Decide stages and assemble the fit workflow graph",
	Long: `Plan resolves the BOLD series against the dataset manifest, decides for
each fitting stage whether a precomputed derivative covers it, and
assembles the remaining stages into a validated workflow graph. The stage
decisions are printed to stdout; diagnostics go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, plan, err := buildGraph()
		if err != nil {
			return err
		}
		printPlan(cmd, plan)
		if outputFormat != "" {
			fmt.Fprint(cmd.OutOrStdout(), render(graph, outputFormat))
		}
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the assembled workflow graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, _, err := buildGraph()
		if err != nil {
			return err
		}
		format := outputFormat
		if format == "" {
			format = "ascii"
		}
		fmt.Fprint(cmd.OutOrStdout(), render(graph, format))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{planCmd, graphCmd} {
		cmd.Flags().StringVar(&datasetPath, "dataset", "", "path to the dataset manifest (required)")
		cmd.Flags().StringVar(&precomputedPath, "precomputed", "", "path to a precomputed-derivatives record")
		cmd.Flags().StringSliceVar(&boldFiles, "bold", nil, "BOLD series files (required, repeatable)")
		cmd.Flags().BoolVar(&hasFieldmap, "fieldmap", false, "a fieldmap estimator is available for this series")
		cmd.Flags().StringVar(&outputFormat, "format", "", "graph output format: ascii or dot")
		cmd.MarkFlagRequired("dataset")
		cmd.MarkFlagRequired("bold")
		rootCmd.AddCommand(cmd)
	}
}

// buildGraph runs the full pipeline: config, manifest index, estimator
// registry, plan, assemble.
func buildGraph() (*wf.Graph, *fit.StagePlan, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, debugFlag || cfg.DebugEnabled("workflow"))

	layout, registry, err := indexDataset(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.IgnoreFieldmaps() {
		logger.Info().Msg("Ignoring fieldmaps per configuration")
		registry.DeactivateAll()
	}

	pre, err := fit.LoadPrecomputed(precomputedPath)
	if err != nil {
		return nil, nil, err
	}

	planner := fit.NewPlanner(layout, registry, cfg, logger)
	plan, err := planner.Plan(boldFiles, pre, hasFieldmap)
	if err != nil {
		return nil, nil, err
	}

	graph, err := fit.NewAssembler(cfg, logger).Assemble(plan)
	if err != nil {
		return nil, nil, err
	}
	return graph, plan, nil
}

// indexDataset loads the manifest and builds the layout index and the
// estimator registry, with a spinner on interactive terminals.
func indexDataset(cfg *config.Configuration, logger zerolog.Logger) (bids.Layout, *fieldmap.Registry, error) {
	var display *progress.Display
	if cfg.ShowProgress {
		display = progress.NewDisplay(progress.DetectTerminalCapabilities())
		display.Start("Indexing dataset " + datasetPath)
	}

	manifest, err := bids.LoadManifest(datasetPath)
	if err != nil {
		if display != nil {
			display.Fail("Indexing failed")
		}
		return nil, nil, err
	}
	layout := bids.NewLayoutFromManifest(manifest)
	registry := fieldmap.NewRegistryFromSpecs(manifest.Fieldmaps)

	if display != nil {
		display.Success(fmt.Sprintf("Indexed %d files", len(manifest.Files)))
	}
	logger.Debug().
		Int("files", len(manifest.Files)).
		Int("estimators", len(registry.ActiveIDs())).
		Str("root", manifest.Root).
		Msg("Dataset indexed")
	return layout, registry, nil
}

// printPlan writes the stage decision summary.
func printPlan(cmd *cobra.Command, plan *fit.StagePlan) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workflow: %s\n", plan.WorkflowName)
	fmt.Fprintf(out, "BOLD file: %s (multiecho: %v)\n", plan.BoldFile, plan.Multiecho)
	if len(plan.SBRefFiles) > 0 {
		fmt.Fprintf(out, "Single-band reference: %s\n", plan.SBRefFiles[0])
	}
	if plan.Mem.FileSizeGB > 0 {
		fmt.Fprintf(out, "Estimated memory: %.2f GB file, %.2f GB resampled\n",
			plan.Mem.FileSizeGB, plan.Mem.ResampledGB)
	}
	for _, d := range plan.Decisions() {
		action := "compute"
		if d.Skip {
			action = "skip (precomputed)"
		}
		fmt.Fprintf(out, "  %-14s %s\n", d.Name+":", action)
	}
	if plan.Fieldmap.Enabled {
		fmt.Fprintf(out, "Fieldmap estimator: %s\n", plan.Fieldmap.EstimatorID)
	} else {
		fmt.Fprintln(out, "Fieldmap correction: disabled")
	}
}

func render(graph *wf.Graph, format string) string {
	if format == "dot" {
		return graph.RenderDOT()
	}
	return graph.RenderASCII()
}
