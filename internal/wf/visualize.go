package wf

import (
	"fmt"
	"strings"
)

// RenderASCII generates a plain-text summary of the graph: nodes in
// insertion order with their kinds, literal bindings, and edges.
// Uses portable ASCII characters only (no Unicode).
func (g *Graph) RenderASCII() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Workflow: %s\n", g.name))
	sb.WriteString(strings.Repeat("=", len(g.name)+10) + "\n\n")

	sb.WriteString("Nodes:\n")
	for _, name := range g.order {
		n := g.nodes[name]
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", n.Kind, name))
		for _, port := range n.Inputs {
			if v, ok := n.Literals[port]; ok {
				sb.WriteString(fmt.Sprintf("      %s <= %s\n", port, v))
			}
		}
	}

	sb.WriteString("\nEdges:\n")
	if len(g.edges) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, e := range g.edges {
		sb.WriteString(fmt.Sprintf("  %s.%s -> %s.%s\n", e.From, e.FromPort, e.To, e.ToPort))
	}

	sb.WriteString("\n")
	sb.WriteString(g.renderSummary())
	return sb.String()
}

// renderSummary renders node and edge counts per kind.
func (g *Graph) renderSummary() string {
	stages := 0
	buffers := 0
	for _, n := range g.nodes {
		switch n.Kind {
		case KindStage, KindSink:
			stages++
		case KindBuffer:
			buffers++
		}
	}
	var sb strings.Builder
	sb.WriteString("Summary:\n")
	sb.WriteString(fmt.Sprintf("  Total Nodes: %d\n", len(g.nodes)))
	sb.WriteString(fmt.Sprintf("  Stage Nodes: %d\n", stages))
	sb.WriteString(fmt.Sprintf("  Buffer Nodes: %d\n", buffers))
	sb.WriteString(fmt.Sprintf("  Edges: %d\n", len(g.edges)))
	return sb.String()
}

// RenderDOT generates a Graphviz DOT representation of the graph, suitable
// for piping into `dot -Tpng`.
func (g *Graph) RenderDOT() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("digraph %q {\n", g.name))
	sb.WriteString("  rankdir=LR;\n")
	for _, name := range g.order {
		n := g.nodes[name]
		shape := "box"
		switch n.Kind {
		case KindBuffer:
			shape = "ellipse"
		case KindInput:
			shape = "diamond"
		case KindSink:
			shape = "note"
		}
		sb.WriteString(fmt.Sprintf("  %q [shape=%s];\n", name, shape))
	}
	for _, e := range g.edges {
		sb.WriteString(fmt.Sprintf("  %q -> %q [label=%q];\n",
			e.From, e.To, e.FromPort+" > "+e.ToPort))
	}
	sb.WriteString("}\n")
	return sb.String()
}
