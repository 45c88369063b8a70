package game

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/talgya/virus-sandbox/internal/catalog"
	"github.com/talgya/virus-sandbox/internal/config"
	"github.com/talgya/virus-sandbox/internal/engine"
)

const gameDoc = `
entities:
  - {name: Virion, class: virion, location: extracellular, is_starter: true}
  - {name: BoundVirion, class: virion, location: membrane}
  - {name: GenomeRNA, class: rna, location: cytoplasm, is_starter: true}
genes:
  - id: attachment
    cost: 25
    transitions:
      - name: attach
        probability: 0.4
        sources: [{entity: Virion, location: extracellular, count: 1}]
        outputs: [{entity: BoundVirion, location: membrane, count: 1}]
  - id: entry
    cost: 20
    requires: [attachment]
    transitions:
      - name: internalize
        probability: 0.5
        sources: [{entity: BoundVirion, location: membrane, count: 1}]
        outputs: [{entity: GenomeRNA, location: cytoplasm, count: 1}]
  - id: spare
    cost: 10
    transitions:
      - name: idle
        probability: 0.1
        sources: [{entity: GenomeRNA, location: cytoplasm, count: 1, catalytic: true}]
        outputs: [{entity: GenomeRNA, location: cytoplasm, count: 1}]
`

func testConfig() config.Config {
	return config.Config{
		Seed:             1234,
		StartingEP:       100,
		DeckSize:         2, // attachment + entry stay out of reach of "spare" sometimes; seed pins the deal
		PolymeraseLimit:  1,
		VictoryThreshold: 10000,
		HistoryLimit:     50,
		InterferonDecay:  2.0,
		BaseDegradation:  0.02,
		YieldStride:      5,
	}
}

func newTestGame(t *testing.T, cfg config.Config) *Game {
	t.Helper()
	cat, err := catalog.Load(strings.NewReader(gameDoc))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	g, err := New(cat, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

// fullDeckConfig deals every gene so install tests are deal-independent.
func fullDeckConfig() config.Config {
	cfg := testConfig()
	cfg.DeckSize = 10
	return cfg
}

func TestNewGameDefaults(t *testing.T) {
	g := newTestGame(t, fullDeckConfig())

	if got := g.EP(); got != 100 {
		t.Errorf("EP() = %d, want 100", got)
	}
	if got := g.Round(); got != 0 {
		t.Errorf("Round() = %d, want 0", got)
	}
	if got := g.Phase(); got != engine.PhaseBuilding {
		t.Errorf("Phase() = %v, want building", got)
	}
	if got := len(g.Deck()); got != 3 {
		t.Errorf("deck size = %d, want all 3 genes", got)
	}
	if starter, count := g.Starter(); starter == "" || count < 1 {
		t.Errorf("Starter() = %q/%d, want a default selection", starter, count)
	}
}

func TestInstallScenario(t *testing.T) {
	g := newTestGame(t, fullDeckConfig())

	graph, err := g.InstallGene("attachment")
	if err != nil {
		t.Fatalf("InstallGene: %v", err)
	}
	if got := g.EP(); got != 75 {
		t.Errorf("EP after install = %d, want 75", got)
	}
	if len(graph.Transitions) != 1 {
		t.Errorf("graph has %d transitions, want 1", len(graph.Transitions))
	}

	if err := g.SelectStarter("Virion", 10); err != nil {
		t.Fatalf("SelectStarter: %v", err)
	}
	if err := g.StartSimulation(); err != nil {
		t.Fatalf("StartSimulation: %v", err)
	}
	if got := g.Phase(); got != engine.PhaseRunning {
		t.Fatalf("Phase() = %v, want running", got)
	}

	reports, err := g.AdvanceTurns(context.Background(), 1)
	if err != nil {
		t.Fatalf("AdvanceTurns: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}

	// One binomial draw with n=10: k units converted, the rest remain.
	k := 0
	for _, pc := range g.Population() {
		switch pc.Entity {
		case "BoundVirion":
			k = pc.Count
		}
	}
	if k < 0 || k > 10 {
		t.Errorf("converted %d units, want within [0, 10]", k)
	}
	if got := reports[0].TotalPopulation; got != 10 {
		t.Errorf("total population = %d, want conserved 10", got)
	}
}

func TestSessionReproducible(t *testing.T) {
	run := func() []engine.TurnReport {
		g := newTestGame(t, fullDeckConfig())
		if _, err := g.InstallGene("attachment"); err != nil {
			t.Fatalf("install: %v", err)
		}
		if _, err := g.InstallGene("entry"); err != nil {
			t.Fatalf("install: %v", err)
		}
		if err := g.StartSimulation(); err != nil {
			t.Fatalf("start: %v", err)
		}
		reports, err := g.AdvanceTurns(context.Background(), 15)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		return reports
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].TotalPopulation != b[i].TotalPopulation || a[i].Produced != b[i].Produced || a[i].Interferon != b[i].Interferon {
			t.Fatalf("turn %d diverged with pinned seed", i+1)
		}
	}
}

func TestSelectStarterValidation(t *testing.T) {
	g := newTestGame(t, fullDeckConfig())

	tests := []struct {
		name    string
		entity  string
		count   int
		wantErr error
	}{
		{name: "not a starter", entity: "BoundVirion", count: 5, wantErr: ErrNotStarter},
		{name: "unknown entity", entity: "Ghost", count: 5, wantErr: ErrNotStarter},
		{name: "count zero", entity: "Virion", count: 0, wantErr: ErrStarterCount},
		{name: "count over cap", entity: "Virion", count: 100, wantErr: ErrStarterCount},
		{name: "valid", entity: "GenomeRNA", count: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.SelectStarter(tt.entity, tt.count)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SelectStarter(%q, %d) error = %v, want %v", tt.entity, tt.count, err, tt.wantErr)
			}
		})
	}

	if starter, count := g.Starter(); starter != "GenomeRNA" || count != 10 {
		t.Errorf("Starter() = %q/%d, want GenomeRNA/10", starter, count)
	}
}

func TestAdvanceRequiresRunning(t *testing.T) {
	g := newTestGame(t, fullDeckConfig())
	if _, err := g.AdvanceTurns(context.Background(), 1); !errors.Is(err, engine.ErrSimulationState) {
		t.Errorf("AdvanceTurns while building: error = %v, want %v", err, engine.ErrSimulationState)
	}
}

func TestInstallDuringSessionDoesNotLeak(t *testing.T) {
	g := newTestGame(t, fullDeckConfig())
	if _, err := g.InstallGene("attachment"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := g.StartSimulation(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Buying another gene mid-session must not change the frozen graph.
	if _, err := g.InstallGene("entry"); err != nil {
		t.Fatalf("install during session: %v", err)
	}
	if _, err := g.AdvanceTurns(context.Background(), 5); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// entry converts BoundVirion to GenomeRNA; with only attachment frozen
	// into the session no GenomeRNA can ever appear.
	for _, pc := range g.Population() {
		if pc.Entity == "GenomeRNA" {
			t.Errorf("mid-session install leaked into the running session: %+v", pc)
		}
	}
}

func TestEndSimulationStartsNewRound(t *testing.T) {
	cfg := testConfig()
	cfg.DeckSize = 2
	g := newTestGame(t, cfg)
	deckBefore := len(g.Deck())

	if err := g.StartSimulation(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := g.EndSimulation(); err != nil {
		t.Fatalf("end: %v", err)
	}

	if got := g.Round(); got != 1 {
		t.Errorf("Round() = %d, want 1", got)
	}
	if got := len(g.Deck()); got != deckBefore+1 {
		t.Errorf("deck size = %d, want %d after one reward deal", got, deckBefore+1)
	}
	if got := g.Phase(); got != engine.PhaseBuilding {
		t.Errorf("Phase() = %v, want building", got)
	}
}

func TestEventsRecorded(t *testing.T) {
	g := newTestGame(t, fullDeckConfig())
	ch := g.Subscribe(16)

	if _, err := g.InstallGene("attachment"); err != nil {
		t.Fatalf("install: %v", err)
	}

	events := g.Events(10)
	if len(events) != 2 {
		t.Fatalf("Events() = %d entries, want economy + graph", len(events))
	}
	if events[0].Kind != EventEconomyChanged || events[1].Kind != EventGraphChanged {
		t.Errorf("event kinds = %v, %v", events[0].Kind, events[1].Kind)
	}
	if events[0].EP != 75 {
		t.Errorf("event EP = %d, want 75", events[0].EP)
	}

	select {
	case e := <-ch:
		if e.Kind != EventEconomyChanged {
			t.Errorf("subscribed event kind = %v, want economy_changed", e.Kind)
		}
	default:
		t.Error("no event delivered to subscriber")
	}
}

func TestGraphSnapshotIsolated(t *testing.T) {
	g := newTestGame(t, fullDeckConfig())
	if _, err := g.InstallGene("attachment"); err != nil {
		t.Fatalf("install: %v", err)
	}

	snap := g.Graph()
	snap.Transitions[0].Probability = 0.99

	if got := g.Graph().Transitions[0].Probability; got != 0.4 {
		t.Errorf("snapshot mutation leaked: probability = %v, want 0.4", got)
	}
}
