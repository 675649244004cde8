package wf

import (
	"fmt"
)

// Validate checks the structural invariants of a finished graph:
//
//   - the graph is acyclic;
//   - every input port of a stage or sink node is bound exactly once;
//   - every buffer port whose output is consumed downstream has its
//     corresponding input bound (no dangling pass-throughs).
//
// A graph that fails validation must not be handed to an execution engine.
func (g *Graph) Validate() error {
	if err := g.detectCycles(); err != nil {
		return err
	}

	for _, name := range g.order {
		n := g.nodes[name]
		switch n.Kind {
		case KindStage, KindSink:
			for _, port := range n.Inputs {
				c := g.bindingCount(name, port)
				if c == 0 {
					return fmt.Errorf("validating graph: input port %s.%s is unbound", name, port)
				}
				if c > 1 {
					return fmt.Errorf("validating graph: input port %s.%s bound %d times", name, port, c)
				}
			}
		case KindBuffer:
			consumed := g.consumedOutputs(name)
			for _, port := range n.Inputs {
				c := g.bindingCount(name, port)
				if c > 1 {
					return fmt.Errorf("validating graph: buffer port %s.%s bound %d times", name, port, c)
				}
				if c == 0 && consumed[port] {
					return fmt.Errorf("validating graph: buffer port %s.%s is consumed but unbound", name, port)
				}
			}
		}
	}
	return nil
}

// detectCycles runs a depth-first search over edge successors, tracking the
// recursion stack to catch back-edges.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(name string) error
	visit = func(name string) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			return fmt.Errorf("validating graph: cycle detected involving node %q", name)
		}
		temporary[name] = true
		for _, succ := range g.Successors(name) {
			if err := visit(succ); err != nil {
				return err
			}
		}
		delete(temporary, name)
		permanent[name] = true
		return nil
	}

	for _, name := range g.order {
		if !permanent[name] {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}
