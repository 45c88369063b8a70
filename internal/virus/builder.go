// Package virus provides the gene-driven transition graph builder: the
// build-phase machinery that turns installed genes into the active
// transition graph a simulation session runs on.
package virus

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/virus-sandbox/internal/catalog"
	"github.com/talgya/virus-sandbox/internal/progress"
)

// Builder command errors. Every failed command leaves the game state exactly
// as it was before the call.
var (
	ErrUnknownGene        = errors.New("gene not in deck")
	ErrAlreadyInstalled   = errors.New("gene already installed")
	ErrNotInstalled       = errors.New("gene not installed")
	ErrDependency         = errors.New("unmet prerequisites")
	ErrDependencyConflict = errors.New("installed gene depends on it")
	ErrCapacity           = errors.New("polymerase capacity reached")
)

// Builder applies install and remove commands against the catalog, charging
// the shared EP ledger and enforcing prerequisite and capacity constraints.
// The installed set lives on the game state, so it survives play phases.
type Builder struct {
	catalog  *catalog.Catalog
	state    *progress.State
	capacity int // max simultaneously installed polymerase genes
}

// NewBuilder creates a builder over the shared game state with the given
// polymerase capacity.
func NewBuilder(cat *catalog.Catalog, state *progress.State, polymeraseCapacity int) *Builder {
	return &Builder{catalog: cat, state: state, capacity: polymeraseCapacity}
}

// Install adds a gene to the virus. On success the install cost is deducted
// and the rebuilt graph snapshot is returned.
func (b *Builder) Install(id string) (TransitionGraph, error) {
	gene, err := b.catalog.Get(id)
	if err != nil || !b.state.InDeck(id) {
		return TransitionGraph{}, fmt.Errorf("install %q: %w", id, ErrUnknownGene)
	}
	if slices.Contains(b.state.Installed, id) {
		return TransitionGraph{}, fmt.Errorf("install %q: %w", id, ErrAlreadyInstalled)
	}

	installed := b.state.InstalledSet()
	for _, req := range gene.Requires {
		if !installed[req] {
			return TransitionGraph{}, fmt.Errorf("install %q: %w: needs %q", id, ErrDependency, req)
		}
	}

	if gene.IsPolymerase && b.polymeraseCount() >= b.capacity {
		return TransitionGraph{}, fmt.Errorf("install %q: %w (limit %d)", id, ErrCapacity, b.capacity)
	}

	if err := b.state.Ledger.Spend(gene.Cost); err != nil {
		return TransitionGraph{}, fmt.Errorf("install %q: %w", id, err)
	}

	b.state.Installed = append(b.state.Installed, id)
	slog.Info("gene installed", "gene", id, "cost", gene.Cost, "ep", b.state.Ledger.Balance())
	return b.Graph(), nil
}

// Remove takes a gene out of the virus. The removal fee is charged even
// though the install cost is not refunded. Removal is refused while another
// installed gene lists the target as a prerequisite; there is no cascading
// removal.
func (b *Builder) Remove(id string) (TransitionGraph, error) {
	idx := slices.Index(b.state.Installed, id)
	if idx < 0 {
		return TransitionGraph{}, fmt.Errorf("remove %q: %w", id, ErrNotInstalled)
	}

	for _, other := range b.state.Installed {
		if other == id {
			continue
		}
		g, err := b.catalog.Get(other)
		if err != nil {
			continue
		}
		if slices.Contains(g.Requires, id) {
			return TransitionGraph{}, fmt.Errorf("remove %q: %w: %q", id, ErrDependencyConflict, other)
		}
	}

	gene, err := b.catalog.Get(id)
	if err != nil {
		return TransitionGraph{}, fmt.Errorf("remove %q: %w", id, ErrUnknownGene)
	}
	if err := b.state.Ledger.Spend(gene.RemovalCost); err != nil {
		return TransitionGraph{}, fmt.Errorf("remove %q: %w", id, err)
	}

	b.state.Installed = slices.Delete(b.state.Installed, idx, idx+1)
	slog.Info("gene removed", "gene", id, "fee", gene.RemovalCost, "ep", b.state.Ledger.Balance())
	return b.Graph(), nil
}

// Graph rebuilds the active transition graph from the installed genes. The
// result is a fresh deep copy every call, so holders of earlier snapshots
// are never affected by later installs.
func (b *Builder) Graph() TransitionGraph {
	var g TransitionGraph
	for _, id := range b.state.Installed {
		gene, err := b.catalog.Get(id)
		if err != nil {
			continue
		}
		for _, t := range gene.Transitions {
			gt := GraphTransition{GeneID: id, Transition: t}
			gt.Sources = slices.Clone(t.Sources)
			gt.Outputs = slices.Clone(t.Outputs)
			g.Transitions = append(g.Transitions, gt)
		}
	}
	return g
}

// Installed returns the installed gene IDs in install order.
func (b *Builder) Installed() []string {
	return slices.Clone(b.state.Installed)
}

// Available returns the deck genes currently eligible for install.
func (b *Builder) Available() []catalog.Gene {
	return b.catalog.ListAvailable(b.state.InstalledSet(), b.state.Deck)
}

// HasPolymerase reports whether a polymerase gene is installed.
func (b *Builder) HasPolymerase() bool {
	return b.polymeraseCount() > 0
}

// PolymeraseGene returns the first installed polymerase gene ID, if any.
func (b *Builder) PolymeraseGene() (string, bool) {
	for _, id := range b.state.Installed {
		if g, err := b.catalog.Get(id); err == nil && g.IsPolymerase {
			return id, true
		}
	}
	return "", false
}

func (b *Builder) polymeraseCount() int {
	n := 0
	for _, id := range b.state.Installed {
		if g, err := b.catalog.Get(id); err == nil && g.IsPolymerase {
			n++
		}
	}
	return n
}
