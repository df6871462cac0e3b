package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geoclear/engine/pkg/detect"
	"github.com/geoclear/engine/pkg/render/conflictgraph"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	output         string  // output file path (stdout DOT if empty)
	detailed       bool    // include severity and finding kinds in labels
	minClearance   float64 // detection clearance
	angleThreshold float64 // parallel detection cutoff in degrees
	workers        int     // detection parallelism
}

// newGraphCmd creates the graph command, which renders detected conflicts
// as a graph in DOT or SVG form.
func newGraphCmd() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph <features.json>",
		Short: "Render the conflict graph as DOT or SVG",
		Long: `Detect conflicts in a feature file and render them as a graph.

Nodes are features colored by priority, edges are conflicts. Crossing
conflicts are highlighted in red. The output format follows the output
file extension (.svg or .dot); without --output the DOT source is written
to stdout.

Examples:
  geoclear graph features.json                    # DOT to stdout
  geoclear graph features.json -o conflicts.svg   # Rendered SVG
  geoclear graph features.json -o conflicts.dot --detailed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (.svg or .dot, stdout if omitted)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include severity and conflict kinds in edge labels")
	cmd.Flags().Float64Var(&opts.minClearance, "min-clearance", 0, "required gap between features")
	cmd.Flags().Float64Var(&opts.angleThreshold, "angle-threshold", 0, "parallel detection cutoff in degrees")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "detection worker count (0 = one per CPU)")

	return cmd
}

func runGraph(cmd *cobra.Command, path string, opts *graphOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	file, err := loadFeatureFile(path)
	if err != nil {
		return err
	}
	feats, err := buildFeatures(file.Features)
	if err != nil {
		return err
	}

	detector := detect.NewDetector(detect.Config{
		MinClearance:   opts.minClearance,
		AngleThreshold: opts.angleThreshold,
		Workers:        opts.workers,
	})
	conflicts, err := detector.DetectAll(ctx, feats)
	if err != nil {
		return err
	}
	logger.Debugf("Detected %d conflicts across %d features", len(conflicts), len(feats))

	dot := conflictgraph.ToDOT(feats, conflicts, conflictgraph.Options{Detailed: opts.detailed})

	if opts.output == "" {
		fmt.Print(dot)
		return nil
	}

	var data []byte
	switch ext := strings.ToLower(filepath.Ext(opts.output)); ext {
	case ".dot", ".gv":
		data = []byte(dot)
	case ".svg":
		data, err = conflictgraph.RenderSVG(ctx, dot)
		if err != nil {
			return fmt.Errorf("render svg: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format %q (use .svg or .dot)", ext)
	}

	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess("Rendered conflict graph")
	printFile(opts.output)
	printStats(len(feats), len(conflicts), false)
	return nil
}
