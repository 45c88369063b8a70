package virus

import (
	"slices"

	"github.com/talgya/virus-sandbox/internal/catalog"
)

// GraphTransition is one active transition together with the gene that
// granted it. Two genes granting identical transitions stay distinct: each
// instance is applied independently during a turn.
type GraphTransition struct {
	GeneID string `json:"gene_id"`
	catalog.Transition
}

// TransitionGraph is the set of active transitions derived from the
// installed genes, ordered by gene install order and then by declaration
// order within each gene. The ordering is what makes turn application
// deterministic for a fixed seed.
type TransitionGraph struct {
	Transitions []GraphTransition `json:"transitions"`
}

// Clone returns a deep copy. A simulation session takes one at start so
// installs during a later build phase can never reach into a running
// session.
func (g TransitionGraph) Clone() TransitionGraph {
	out := TransitionGraph{Transitions: make([]GraphTransition, len(g.Transitions))}
	for i, t := range g.Transitions {
		c := t
		c.Sources = slices.Clone(t.Sources)
		c.Outputs = slices.Clone(t.Outputs)
		out.Transitions[i] = c
	}
	return out
}

// Entities returns the names of all entities reachable through the graph,
// deduplicated in first-appearance order. The builder UI renders these as
// the virus blueprint.
func (g TransitionGraph) Entities() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, t := range g.Transitions {
		for _, s := range t.Sources {
			add(s.Entity)
		}
		for _, o := range t.Outputs {
			add(o.Entity)
		}
	}
	return out
}
