// Package game wires the catalog, builder, simulator, and progress tracker
// into the single command surface a host talks to. Commands return typed
// results or typed failures and never leave state half-mutated.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/talgya/virus-sandbox/internal/catalog"
	"github.com/talgya/virus-sandbox/internal/config"
	"github.com/talgya/virus-sandbox/internal/engine"
	"github.com/talgya/virus-sandbox/internal/entropy"
	"github.com/talgya/virus-sandbox/internal/progress"
	"github.com/talgya/virus-sandbox/internal/virus"
)

// Starter selection errors.
var (
	ErrNotStarter   = errors.New("entity not eligible as starter")
	ErrStarterCount = errors.New("starter count outside allowed range")
)

// Game owns one playthrough: the persistent game state plus at most one live
// simulation session. All methods are safe for concurrent use; the engine
// itself stays single-threaded behind the lock.
type Game struct {
	mu sync.Mutex

	cfg     config.Config
	catalog *catalog.Catalog
	state   *progress.State
	tracker *progress.Tracker
	builder *virus.Builder
	sim     *engine.Simulator

	// dealer draws deck rewards; seeded separately from sessions.
	dealer *entropy.Stream

	lastOutcome *progress.Outcome

	events     []Event
	subscriber chan Event
}

// New starts a fresh playthrough: a random starting deck, the default
// starting EP, and an empty virus.
func New(cat *catalog.Catalog, cfg config.Config) (*Game, error) {
	dealSeed := cfg.Seed
	if dealSeed == 0 {
		var err error
		dealSeed, err = entropy.NewSeed()
		if err != nil {
			return nil, err
		}
	}
	dealer := entropy.NewStream(dealSeed)

	deck := dealDeck(cat, cfg.DeckSize, dealer)
	state := progress.NewState(cfg.StartingEP, deck)
	return newGame(cat, cfg, state, dealer), nil
}

// Resume continues a playthrough from a restored game state.
func Resume(cat *catalog.Catalog, cfg config.Config, state *progress.State) (*Game, error) {
	dealSeed := cfg.Seed
	if dealSeed == 0 {
		var err error
		dealSeed, err = entropy.NewSeed()
		if err != nil {
			return nil, err
		}
	}
	return newGame(cat, cfg, state, entropy.NewStream(dealSeed)), nil
}

func newGame(cat *catalog.Catalog, cfg config.Config, state *progress.State, dealer *entropy.Stream) *Game {
	g := &Game{
		cfg:     cfg,
		catalog: cat,
		state:   state,
		tracker: progress.NewTracker(state),
		builder: virus.NewBuilder(cat, state, cfg.PolymeraseLimit),
		sim:     engine.NewSimulator(cat, cfg.EngineParams()),
		dealer:  dealer,
	}
	g.ensureStarter()
	return g
}

// dealDeck draws up to size distinct genes from the catalog.
func dealDeck(cat *catalog.Catalog, size int, dealer *entropy.Stream) []string {
	genes := cat.Genes()
	if size > len(genes) {
		size = len(genes)
	}
	deck := make([]string, 0, size)
	for _, i := range dealer.Perm(len(genes))[:size] {
		deck = append(deck, genes[i].ID)
	}
	return deck
}

// ensureStarter defaults the starter selection to the first eligible entity
// when nothing is selected.
func (g *Game) ensureStarter() {
	if g.state.Starter != "" {
		return
	}
	if starters := g.catalog.StarterEntities(); len(starters) > 0 {
		g.state.Starter = starters[0].Name
	}
}

// InstallGene installs a gene and returns the rebuilt graph snapshot.
// Installs never reach a running session: it holds a frozen copy.
func (g *Game) InstallGene(id string) (virus.TransitionGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.builder.Install(id)
	if err != nil {
		return virus.TransitionGraph{}, err
	}
	g.emit(Event{Kind: EventEconomyChanged})
	g.emit(Event{Kind: EventGraphChanged})
	return graph, nil
}

// RemoveGene removes a gene and returns the rebuilt graph snapshot.
func (g *Game) RemoveGene(id string) (virus.TransitionGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph, err := g.builder.Remove(id)
	if err != nil {
		return virus.TransitionGraph{}, err
	}
	g.emit(Event{Kind: EventEconomyChanged})
	g.emit(Event{Kind: EventGraphChanged})
	return graph, nil
}

// SelectStarter chooses the entity type and count seeding the next session.
// The count is capped by the milestone bonus rules.
func (g *Game) SelectStarter(entity string, count int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.catalog.Entity(entity)
	if !ok || !e.IsStarter {
		return fmt.Errorf("starter %q: %w", entity, ErrNotStarter)
	}
	if count < 1 || count > g.state.MaxStarterCount() {
		return fmt.Errorf("starter count %d: %w [1, %d]", count, ErrStarterCount, g.state.MaxStarterCount())
	}
	g.state.Starter = entity
	g.state.StarterCount = count
	return nil
}

// StartSimulation freezes the current graph and moves to Running.
func (g *Game) StartSimulation() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	starter, ok := g.catalog.Entity(g.state.Starter)
	if !ok || !starter.IsStarter {
		return fmt.Errorf("starter %q: %w", g.state.Starter, ErrNotStarter)
	}

	seed := g.cfg.Seed
	if seed == 0 {
		var err error
		seed, err = entropy.NewSeed()
		if err != nil {
			return err
		}
	}

	if err := g.sim.Start(starter, g.state.StarterCount, g.builder.Graph(), seed); err != nil {
		return err
	}
	g.lastOutcome = nil
	slog.Info("simulation started",
		"session", g.sim.SessionID(),
		"starter", starter.Name,
		"count", g.state.StarterCount,
		"seed", seed,
		"transitions", len(g.builder.Graph().Transitions),
	)
	return nil
}

// AdvanceTurns runs up to n turns, evaluating milestones and emitting
// events after each. Cancelling ctx stops further turns without rolling
// back turns already applied; their reports are still returned.
func (g *Game) AdvanceTurns(ctx context.Context, n int) ([]engine.TurnReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reports, err := g.sim.Advance(ctx, n, func(report engine.TurnReport) bool {
		snap := g.sim.Snapshot()
		for _, done := range g.tracker.Evaluate(snap) {
			m := done
			g.emit(Event{Kind: EventMilestoneCompleted, Milestone: &m})
			g.emit(Event{Kind: EventEconomyChanged})
		}
		r := report
		g.emit(Event{Kind: EventTurnCompleted, Report: &r})
		return true
	})
	if err != nil {
		return reports, err
	}

	if phase := g.sim.Phase(); phase.Terminal() {
		g.finalize(phase)
	}
	return reports, nil
}

// finalize applies terminal rewards once and emits the terminal event.
func (g *Game) finalize(phase engine.Phase) {
	outcome := progress.OutcomeExtinction
	kind := EventExtinctionReached
	if phase == engine.PhaseVictory {
		outcome = progress.OutcomeVictory
		kind = EventVictoryReached
	}

	snap := g.sim.Snapshot()
	for _, done := range g.tracker.FinalizeOutcome(outcome, snap) {
		m := done
		g.emit(Event{Kind: EventMilestoneCompleted, Milestone: &m})
	}
	g.emit(Event{Kind: kind, Stats: &snap})
	g.lastOutcome = &outcome
}

// EndSimulation discards the session, starts the next round, and deals any
// reward genes into the deck. Valid from Running and both terminal phases.
func (g *Game) EndSimulation() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.sim.End(); err != nil {
		return err
	}

	rewards := 1
	if g.lastOutcome != nil && *g.lastOutcome == progress.OutcomeVictory {
		rewards = 2
	}
	g.tracker.StartNewRound(g.dealRewards(rewards))
	g.lastOutcome = nil
	g.ensureStarter()
	return nil
}

// dealRewards draws up to n catalog genes not yet in the deck.
func (g *Game) dealRewards(n int) []string {
	var undealt []string
	for _, gene := range g.catalog.Genes() {
		if !g.state.InDeck(gene.ID) {
			undealt = append(undealt, gene.ID)
		}
	}
	if n > len(undealt) {
		n = len(undealt)
	}
	var out []string
	for _, i := range g.dealer.Perm(len(undealt))[:n] {
		out = append(out, undealt[i])
	}
	return out
}

// ── Query surface (read-only snapshots) ──────────────────────────────────

// EP returns the current evolution-point balance.
func (g *Game) EP() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Ledger.Balance()
}

// Round returns the current round counter.
func (g *Game) Round() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Round
}

// Phase returns the simulator phase.
func (g *Game) Phase() engine.Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sim.Phase()
}

// InstalledGenes returns the installed gene IDs in install order.
func (g *Game) InstalledGenes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.builder.Installed()
}

// Deck returns every gene dealt to the player.
func (g *Game) Deck() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.state.Deck)
}

// AvailableGenes returns the deck genes currently installable.
func (g *Game) AvailableGenes() []catalog.Gene {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.builder.Available()
}

// Graph returns a snapshot of the active transition graph.
func (g *Game) Graph() virus.TransitionGraph {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.builder.Graph()
}

// Population returns the current population buckets.
func (g *Game) Population() []engine.PopulationCount {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sim.Population()
}

// InterferonLevel returns the current interferon level.
func (g *Game) InterferonLevel() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sim.Interferon()
}

// History returns the bounded turn history, oldest first.
func (g *Game) History() []engine.HistoryRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sim.History()
}

// Milestones returns a copy of the milestone table.
func (g *Game) Milestones() []progress.Milestone {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.state.Milestones)
}

// Starter returns the selected starter entity and count.
func (g *Game) Starter() (string, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Starter, g.state.StarterCount
}

// State exposes the persistent game state for snapshot persistence. The
// caller must not mutate it.
func (g *Game) State() *progress.State {
	return g.state
}
