// Package engine provides the stochastic turn simulator. It consumes a
// frozen transition graph and an initial population, then advances turns
// until the population dies out or overwhelms the host.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"

	"github.com/talgya/virus-sandbox/internal/catalog"
	"github.com/talgya/virus-sandbox/internal/entropy"
	"github.com/talgya/virus-sandbox/internal/host"
	"github.com/talgya/virus-sandbox/internal/progress"
	"github.com/talgya/virus-sandbox/internal/virus"
)

// ErrSimulationState is returned when a command is issued in a phase that
// forbids it, e.g. advancing turns while still building.
var ErrSimulationState = errors.New("command not valid in current simulation state")

// Phase is the simulator state machine. Building is the initial phase;
// Victory and Extinction are absorbing and only End leaves them.
type Phase uint8

const (
	PhaseBuilding Phase = iota
	PhaseRunning
	PhaseVictory
	PhaseExtinction
)

var phaseNames = map[Phase]string{
	PhaseBuilding:   "building",
	PhaseRunning:    "running",
	PhaseVictory:    "victory",
	PhaseExtinction: "extinction",
}

// String returns the lowercase phase name.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the phase as its lowercase name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Terminal reports whether the phase is absorbing.
func (p Phase) Terminal() bool {
	return p == PhaseVictory || p == PhaseExtinction
}

// Params are the balance constants of a simulation session.
type Params struct {
	VictoryThreshold int     // total population that wins the run
	HistoryLimit     int     // bounded turn history length
	InterferonDecay  float64 // interferon removed per turn
	BaseDegradation  float64 // degradation probability at full interferon
	YieldStride      int     // turns between cancellation checks in batch mode
}

// DefaultParams returns the default balance constants.
func DefaultParams() Params {
	return Params{
		VictoryThreshold: 10000,
		HistoryLimit:     50,
		InterferonDecay:  2.0,
		BaseDegradation:  0.02,
		YieldStride:      5,
	}
}

// Simulator runs at most one session at a time. A session owns its own
// population, interferon level, history, and random stream; all of it is
// discarded when End returns the simulator to Building.
type Simulator struct {
	catalog *catalog.Catalog
	params  Params

	phase     Phase
	sessionID uuid.UUID
	graph     virus.TransitionGraph
	stream    *entropy.Stream
	field     *host.Field

	pop        map[PopKey]int
	interferon float64
	turn       int

	peak       int
	cumulative int
	underflows int

	history *History
}

// NewSimulator creates a simulator in the Building phase.
func NewSimulator(cat *catalog.Catalog, params Params) *Simulator {
	if params.YieldStride < 1 {
		params.YieldStride = 1
	}
	return &Simulator{catalog: cat, params: params, phase: PhaseBuilding}
}

// Phase returns the current phase.
func (s *Simulator) Phase() Phase {
	return s.phase
}

// SessionID returns the id of the current session. Zero outside a session.
func (s *Simulator) SessionID() uuid.UUID {
	return s.sessionID
}

// Turn returns the number of turns advanced in the current session.
func (s *Simulator) Turn() int {
	return s.turn
}

// Seed returns the random seed of the current session.
func (s *Simulator) Seed() int64 {
	if s.stream == nil {
		return 0
	}
	return s.stream.Seed()
}

// Interferon returns the current interferon level in [0, 100].
func (s *Simulator) Interferon() float64 {
	return s.interferon
}

// Start seeds a session and moves Building to Running. The graph is deep
// copied, so build-phase installs after this point never reach the session.
func (s *Simulator) Start(starter catalog.EntityType, count int, graph virus.TransitionGraph, seed int64) error {
	if s.phase != PhaseBuilding {
		return fmt.Errorf("start: %w: phase %s", ErrSimulationState, s.phase)
	}
	if count < 1 {
		return fmt.Errorf("start: starter count %d must be positive", count)
	}

	s.sessionID = uuid.New()
	s.graph = graph.Clone()
	s.stream = entropy.NewStream(seed)
	s.field = host.NewField(seed)
	s.pop = map[PopKey]int{{Entity: starter.Name, Location: starter.Location}: count}
	s.interferon = 0
	s.turn = 0
	s.peak = count
	s.cumulative = count
	s.underflows = 0
	s.history = NewHistory(s.params.HistoryLimit)
	s.phase = PhaseRunning
	return nil
}

// End discards the session and returns to Building. Valid from Running and
// from both terminal phases.
func (s *Simulator) End() error {
	if s.phase == PhaseBuilding {
		return fmt.Errorf("end: %w: phase %s", ErrSimulationState, s.phase)
	}
	s.sessionID = uuid.UUID{}
	s.graph = virus.TransitionGraph{}
	s.stream = nil
	s.field = nil
	s.pop = nil
	s.interferon = 0
	s.turn = 0
	s.peak = 0
	s.cumulative = 0
	s.underflows = 0
	s.history = nil
	s.phase = PhaseBuilding
	return nil
}

// Population returns the current population buckets sorted by entity then
// location, omitting empty buckets.
func (s *Simulator) Population() []PopulationCount {
	return popSnapshot(s.pop)
}

// TotalPopulation returns the sum of all population counts.
func (s *Simulator) TotalPopulation() int {
	total := 0
	for _, n := range s.pop {
		total += n
	}
	return total
}

// History returns the bounded turn history, oldest first.
func (s *Simulator) History() []HistoryRecord {
	if s.history == nil {
		return nil
	}
	return s.history.Records()
}

// Snapshot returns the quantities milestone evaluation consumes.
func (s *Simulator) Snapshot() progress.Snapshot {
	return progress.Snapshot{
		Turn:               s.turn,
		TotalPopulation:    s.TotalPopulation(),
		PeakPopulation:     s.peak,
		CumulativeProduced: s.cumulative,
	}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
