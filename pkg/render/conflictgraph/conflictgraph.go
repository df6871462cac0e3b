// Package conflictgraph renders a detected conflict set as a graph: one node
// per feature, one edge per conflicting pair. Useful for debugging dense
// batches where the JSON result is hard to read.
package conflictgraph

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/geoclear/engine/pkg/detect"
	"github.com/geoclear/engine/pkg/feature"
)

// Options configures conflict graph rendering.
type Options struct {
	// Detailed includes severity and finding kinds in edge labels.
	// When false, edges are unlabeled.
	Detailed bool
}

// priorityFill maps priority ranks onto node colors, hottest first.
var priorityFill = map[int]string{
	1: "tomato",
	2: "orange",
	3: "gold",
	4: "palegreen",
	5: "lightblue",
}

// ToDOT converts features and their conflicts to Graphviz DOT format.
// The resulting DOT string can be rendered with [RenderSVG].
func ToDOT(feats []feature.Feature, conflicts []detect.Conflict, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph conflicts {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontsize=12];\n")
	buf.WriteString("\n")

	sorted := make([]feature.Feature, len(feats))
	copy(sorted, feats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, f := range sorted {
		fill := priorityFill[f.Priority.Rank()]
		if fill == "" {
			fill = "white"
		}
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%s];\n",
			f.ID, fmt.Sprintf("%s\n%s", f.ID, f.Priority), fill)
	}

	buf.WriteString("\n")
	for _, c := range conflicts {
		attrs := edgeAttrs(c, opts.Detailed)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -- %q;\n", c.A.ID, c.B.ID)
			continue
		}
		fmt.Fprintf(&buf, "  %q -- %q [%s];\n", c.A.ID, c.B.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func edgeAttrs(c detect.Conflict, detailed bool) []string {
	var attrs []string
	if c.Has(detect.KindCrossing) {
		attrs = append(attrs, "color=red", "penwidth=2")
	}
	if !detailed {
		return attrs
	}

	kinds := make([]string, 0, len(c.Findings))
	for _, f := range c.Findings {
		kinds = append(kinds, string(f.Kind()))
	}
	label := fmt.Sprintf("severity %.1f\n%s", c.Severity, strings.Join(kinds, "\n"))
	return append(attrs, fmt.Sprintf("label=%q", label), "fontsize=9")
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
