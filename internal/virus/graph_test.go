package virus

import (
	"slices"
	"testing"

	"github.com/talgya/virus-sandbox/internal/catalog"
)

func TestGraphClone(t *testing.T) {
	g := TransitionGraph{Transitions: []GraphTransition{{
		GeneID: "attachment",
		Transition: catalog.Transition{
			Name:        "attach",
			Probability: 0.4,
			Sources:     []catalog.TransitionSource{{Entity: "Virion", Location: catalog.LocExtracellular, Count: 1}},
			Outputs:     []catalog.TransitionOutput{{Entity: "BoundVirion", Location: catalog.LocMembrane, Count: 1}},
		},
	}}}

	c := g.Clone()
	c.Transitions[0].Probability = 0.9
	c.Transitions[0].Sources[0].Count = 5

	if g.Transitions[0].Probability != 0.4 {
		t.Errorf("clone mutation reached original probability: %v", g.Transitions[0].Probability)
	}
	if g.Transitions[0].Sources[0].Count != 1 {
		t.Errorf("clone mutation reached original source slice: %d", g.Transitions[0].Sources[0].Count)
	}
}

func TestGraphEntities(t *testing.T) {
	g := TransitionGraph{Transitions: []GraphTransition{
		{
			GeneID: "attachment",
			Transition: catalog.Transition{
				Sources: []catalog.TransitionSource{{Entity: "Virion", Count: 1}},
				Outputs: []catalog.TransitionOutput{{Entity: "BoundVirion", Count: 1}},
			},
		},
		{
			GeneID: "entry",
			Transition: catalog.Transition{
				Sources: []catalog.TransitionSource{{Entity: "BoundVirion", Count: 1}},
				Outputs: []catalog.TransitionOutput{{Entity: "GenomeRNA", Count: 1}},
			},
		},
	}}

	got := g.Entities()
	want := []string{"Virion", "BoundVirion", "GenomeRNA"}
	if !slices.Equal(got, want) {
		t.Errorf("Entities() = %v, want %v (deduplicated, first appearance order)", got, want)
	}
}
