// Package wf provides the workflow graph model used to assemble the BOLD
// fitting pipeline: named nodes with typed input/output ports, directed
// port-to-port edges, and structural validation (acyclicity, binding rules).
// The graph is a construction artifact only; execution belongs to the caller.
package wf

import (
	"fmt"
	"sort"
)

// NodeKind distinguishes the structural roles a node can play in the graph.
type NodeKind int

const (
	// KindInput is the single entry node carrying caller-supplied values.
	KindInput NodeKind = iota
	// KindBuffer is an identity node standing in for a stage output, so
	// downstream consumers bind the same port whether the stage ran or
	// was replaced by a precomputed value.
	KindBuffer
	// KindStage is an opaque compute sub-workflow with a fixed port contract.
	KindStage
	// KindSink is a derivative-writing stage; it forwards its inputs.
	KindSink
)

// String returns the string representation of a NodeKind.
func (k NodeKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindBuffer:
		return "buffer"
	case KindStage:
		return "stage"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Node is a vertex in the workflow graph. Port sets are fixed at creation
// time; branches in assembly decide how ports are bound, never which ports
// exist.
type Node struct {
	Name     string
	Kind     NodeKind
	Inputs   []string          // declared input port names
	Outputs  []string          // declared output port names
	Literals map[string]string // input port -> pass-through value
}

func (n *Node) hasInput(port string) bool {
	for _, p := range n.Inputs {
		if p == port {
			return true
		}
	}
	return false
}

func (n *Node) hasOutput(port string) bool {
	for _, p := range n.Outputs {
		if p == port {
			return true
		}
	}
	return false
}

// Edge binds an upstream output port to a downstream input port.
type Edge struct {
	From     string
	FromPort string
	To       string
	ToPort   string
}

// Graph is a directed acyclic workflow graph under construction. It is not
// safe for concurrent mutation; each invocation builds one graph from
// immutable inputs.
type Graph struct {
	name  string
	nodes map[string]*Node
	order []string // insertion order, for deterministic traversal
	edges []Edge
}

// New creates an empty graph with the given workflow name.
func New(name string) *Graph {
	return &Graph{
		name:  name,
		nodes: make(map[string]*Node),
	}
}

// Name returns the workflow name.
func (g *Graph) Name() string {
	return g.name
}

// AddNode adds a node with fixed input and output port sets.
// Node names must be unique within the graph.
func (g *Graph) AddNode(name string, kind NodeKind, inputs, outputs []string) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("adding node: empty name")
	}
	if _, exists := g.nodes[name]; exists {
		return nil, fmt.Errorf("adding node: duplicate node name %q", name)
	}
	n := &Node{
		Name:     name,
		Kind:     kind,
		Inputs:   append([]string(nil), inputs...),
		Outputs:  append([]string(nil), outputs...),
		Literals: make(map[string]string),
	}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return n, nil
}

// Node returns the node with the given name, or nil.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		nodes = append(nodes, g.nodes[name])
	}
	return nodes
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Connect binds an output port of one node to an input port of another.
// Both ports must be declared, and an input port accepts at most one
// binding (edge or literal).
func (g *Graph) Connect(from, fromPort, to, toPort string) error {
	src, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("connecting %s.%s -> %s.%s: source node not found", from, fromPort, to, toPort)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("connecting %s.%s -> %s.%s: destination node not found", from, fromPort, to, toPort)
	}
	if from == to {
		return fmt.Errorf("connecting %s.%s -> %s.%s: self-referential edge not allowed", from, fromPort, to, toPort)
	}
	if !src.hasOutput(fromPort) {
		return fmt.Errorf("connecting %s.%s -> %s.%s: undeclared output port", from, fromPort, to, toPort)
	}
	if !dst.hasInput(toPort) {
		return fmt.Errorf("connecting %s.%s -> %s.%s: undeclared input port", from, fromPort, to, toPort)
	}
	if g.bindingCount(to, toPort) > 0 {
		return fmt.Errorf("connecting %s.%s -> %s.%s: input port already bound", from, fromPort, to, toPort)
	}
	g.edges = append(g.edges, Edge{From: from, FromPort: fromPort, To: to, ToPort: toPort})
	return nil
}

// SetLiteral binds an input port to a fixed value, e.g. a precomputed
// artifact path. Counts as the port's single binding.
func (g *Graph) SetLiteral(node, port, value string) error {
	n, ok := g.nodes[node]
	if !ok {
		return fmt.Errorf("setting literal %s.%s: node not found", node, port)
	}
	if !n.hasInput(port) {
		return fmt.Errorf("setting literal %s.%s: undeclared input port", node, port)
	}
	if g.bindingCount(node, port) > 0 {
		return fmt.Errorf("setting literal %s.%s: input port already bound", node, port)
	}
	n.Literals[port] = value
	return nil
}

// bindingCount returns how many bindings (edges plus literals) target the
// given input port.
func (g *Graph) bindingCount(node, port string) int {
	count := 0
	for _, e := range g.edges {
		if e.To == node && e.ToPort == port {
			count++
		}
	}
	if _, ok := g.nodes[node].Literals[port]; ok {
		count++
	}
	return count
}

// consumedOutputs returns, for a node, the set of output port names that
// have at least one outgoing edge.
func (g *Graph) consumedOutputs(node string) map[string]bool {
	consumed := make(map[string]bool)
	for _, e := range g.edges {
		if e.From == node {
			consumed[e.FromPort] = true
		}
	}
	return consumed
}

// Successors returns the names of nodes reachable by one edge from the
// given node, sorted for deterministic iteration.
func (g *Graph) Successors(name string) []string {
	seen := make(map[string]bool)
	for _, e := range g.edges {
		if e.From == name {
			seen[e.To] = true
		}
	}
	succ := make([]string, 0, len(seen))
	for s := range seen {
		succ = append(succ, s)
	}
	sort.Strings(succ)
	return succ
}
