package cli

import (
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/geoclear/engine/pkg/pipeline"
)

// processOpts holds the command-line flags for the process command.
type processOpts struct {
	output          string  // output file path (stdout if empty)
	minClearance    float64 // required gap between feature footprints
	forceStrength   float64 // repulsion scaling factor
	angleThreshold  float64 // parallel detection cutoff in degrees
	snapTolerance   float64 // junction connectivity tolerance
	maxDisplacement float64 // cap on accumulated correction, 0 = unbounded
	workers         int     // detection parallelism, 0 = one per CPU
	enableDepth     bool    // attach z-order and shadow metadata
	interactive     bool    // browse conflicts in a TUI afterwards
}

// pipelineOptions converts the flags into pipeline options. Zero values
// fall through to the pipeline defaults.
func (o *processOpts) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		MinClearance:    o.minClearance,
		ForceStrength:   o.forceStrength,
		AngleThreshold:  o.angleThreshold,
		SnapTolerance:   o.snapTolerance,
		MaxDisplacement: o.maxDisplacement,
		Workers:         o.workers,
		Enable3DDepth:   o.enableDepth,
	}
}

// newProcessCmd creates the process command, which runs the full conflict
// resolution pipeline on a feature file and writes the corrected result.
func newProcessCmd() *cobra.Command {
	var opts processOpts

	cmd := &cobra.Command{
		Use:   "process <features.json>",
		Short: "Detect and resolve visual conflicts in a feature file",
		Long: `Run conflict detection and displacement on a JSON feature file.

The input is either {"features": [...], "config": {...}} or a bare array of
features, each with "id", "geometry" (WKT LINESTRING), and "priority".
Command-line flags override the file's embedded config.

Examples:
  geoclear process features.json                       # Result to stdout
  geoclear process features.json -o corrected.json     # Result to file
  geoclear process features.json --enable-3d-depth     # With depth metadata
  geoclear process features.json --interactive         # Browse conflicts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if omitted)")
	cmd.Flags().Float64Var(&opts.minClearance, "min-clearance", 0, "required gap between features")
	cmd.Flags().Float64Var(&opts.forceStrength, "force-strength", 0, "repulsion force scaling")
	cmd.Flags().Float64Var(&opts.angleThreshold, "angle-threshold", 0, "parallel detection cutoff in degrees")
	cmd.Flags().Float64Var(&opts.snapTolerance, "snap-tolerance", 0, "junction connectivity tolerance")
	cmd.Flags().Float64Var(&opts.maxDisplacement, "max-displacement", 0, "cap on per-feature displacement (0 = unbounded)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "detection worker count (0 = one per CPU)")
	cmd.Flags().BoolVar(&opts.enableDepth, "enable-3d-depth", false, "attach z-order and shadow metadata")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse detected conflicts interactively")

	return cmd
}

func runProcess(cmd *cobra.Command, path string, opts *processOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	file, err := loadFeatureFile(path)
	if err != nil {
		return err
	}

	pipeOpts := opts.pipelineOptions()
	if file.Config != nil {
		pipeOpts = mergeOptions(*file.Config, pipeOpts)
	}

	logger.Debugf("Loaded %d features from %s", len(file.Features), path)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Resolving conflicts across %d features...", len(file.Features)))
	spinner.Start()

	prog := newProgress(logger)
	runner := pipeline.NewRunner(logger)
	result, err := runner.Execute(ctx, file.Features, pipeOpts)
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("Processing failed: %v", err))
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Resolved %d of %d conflicts", result.TotalConflictsResolved, result.TotalConflictsDetected))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if opts.output == "" {
		fmt.Println(string(data))
	} else {
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.output, err)
		}
		printSuccess("Wrote corrected features")
		printFile(opts.output)
		printStats(len(result.Results), result.TotalConflictsDetected, false)
		if !result.TopologyPreserved {
			printWarning("Topology not fully preserved; inspect junction members")
		}
		printNextStep("Render the conflict graph", fmt.Sprintf("geoclear graph %s -o conflicts.svg", path))
	}

	if opts.interactive {
		model := NewConflictListModel(result)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			return fmt.Errorf("interactive browser: %w", err)
		}
	}
	return nil
}

// mergeOptions layers flag overrides on top of the file's embedded config.
// Only explicitly set (non-zero) flag values win.
func mergeOptions(base, flags pipeline.Options) pipeline.Options {
	if flags.MinClearance > 0 {
		base.MinClearance = flags.MinClearance
	}
	if flags.ForceStrength > 0 {
		base.ForceStrength = flags.ForceStrength
	}
	if flags.AngleThreshold > 0 {
		base.AngleThreshold = flags.AngleThreshold
	}
	if flags.SnapTolerance > 0 {
		base.SnapTolerance = flags.SnapTolerance
	}
	if flags.MaxDisplacement > 0 {
		base.MaxDisplacement = flags.MaxDisplacement
	}
	if flags.Workers > 0 {
		base.Workers = flags.Workers
	}
	if flags.Enable3DDepth {
		base.Enable3DDepth = true
	}
	return base
}
