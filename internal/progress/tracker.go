// Package progress owns the game state that persists across build and play
// phases: the evolution-point ledger, the gene deck, the round counter, and
// the milestone table. It reacts to simulation snapshots by advancing
// milestone progress and crediting rewards.
package progress

import (
	"log/slog"
	"slices"

	"github.com/talgya/virus-sandbox/internal/economy"
)

// DefaultStarterCount is the baseline initial population for a session.
const DefaultStarterCount = 10

// StarterBonusPerMilestone is added to the maximum starter count for each
// completed milestone.
const StarterBonusPerMilestone = 2

// State is the explicit game-state context shared between the builder and
// the tracker. It lives for a whole playthrough and is discarded only on a
// new game.
type State struct {
	Ledger *economy.Ledger

	// Deck is every gene ever dealt to the player; Installed is the subset
	// currently built into the virus, in install order.
	Deck      []string
	Installed []string

	Round      int
	Milestones []Milestone

	// Starter selection for the next session.
	Starter      string
	StarterCount int
}

// NewState creates a fresh game state with the given starting balance, deck
// and the default milestone table.
func NewState(startingEP int, deck []string) *State {
	return &State{
		Ledger:       economy.NewLedger(startingEP),
		Deck:         slices.Clone(deck),
		Milestones:   DefaultMilestones(),
		StarterCount: DefaultStarterCount,
	}
}

// InstalledSet returns the installed genes as a lookup set.
func (s *State) InstalledSet() map[string]bool {
	set := make(map[string]bool, len(s.Installed))
	for _, id := range s.Installed {
		set[id] = true
	}
	return set
}

// InDeck reports whether the gene has been dealt to the player.
func (s *State) InDeck(id string) bool {
	return slices.Contains(s.Deck, id)
}

// CompletedMilestones returns how many milestones have been completed.
func (s *State) CompletedMilestones() int {
	n := 0
	for _, m := range s.Milestones {
		if m.State == StateCompleted {
			n++
		}
	}
	return n
}

// MaxStarterCount returns the largest starter population the player may
// request: the baseline plus the accumulated milestone bonus.
func (s *State) MaxStarterCount() int {
	return DefaultStarterCount + StarterBonusPerMilestone*s.CompletedMilestones()
}

// Snapshot carries the per-turn simulation quantities milestones measure.
type Snapshot struct {
	Turn               int `json:"turn"`
	TotalPopulation    int `json:"total_population"`
	PeakPopulation     int `json:"peak_population"`
	CumulativeProduced int `json:"cumulative_produced"`
}

// MilestoneEvent reports a milestone completed during an evaluation.
type MilestoneEvent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RewardEP int    `json:"reward_ep"`
}

// Outcome is the terminal result of a simulation session.
type Outcome uint8

const (
	OutcomeVictory Outcome = iota
	OutcomeExtinction
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	if o == OutcomeVictory {
		return "victory"
	}
	return "extinction"
}

// Tracker evaluates milestones against simulation snapshots and manages the
// round lifecycle.
type Tracker struct {
	state *State
}

// NewTracker creates a tracker over the given game state.
func NewTracker(state *State) *Tracker {
	return &Tracker{state: state}
}

// State returns the underlying game state.
func (t *Tracker) State() *State {
	return t.state
}

// Evaluate advances milestone progress from a simulation snapshot. Progress
// is monotone while in progress and frozen once completed; each completed
// milestone credits its reward exactly once and unlocks its dependents.
// Newly completed milestones are returned in table order.
func (t *Tracker) Evaluate(snap Snapshot) []MilestoneEvent {
	var completed []MilestoneEvent

	for i := range t.state.Milestones {
		m := &t.state.Milestones[i]
		if m.State != StateInProgress {
			continue
		}

		value := 0
		switch m.Kind {
		case KindSurviveTurns:
			value = snap.Turn
		case KindPeakEntityCount:
			value = snap.PeakPopulation
		case KindCumulativeEntityCount:
			value = snap.CumulativeProduced
		}
		if value > m.Progress {
			m.Progress = value
		}

		if m.Progress >= m.Target {
			m.Progress = m.Target
			m.State = StateCompleted
			t.state.Ledger.Credit(m.RewardEP)
			completed = append(completed, MilestoneEvent{ID: m.ID, Name: m.Name, RewardEP: m.RewardEP})
			slog.Info("milestone completed", "milestone", m.ID, "reward_ep", m.RewardEP, "ep", t.state.Ledger.Balance())
		}
	}

	for _, done := range completed {
		t.unlockDependents(done.ID)
	}
	return completed
}

func (t *Tracker) unlockDependents(completedID string) {
	for i := range t.state.Milestones {
		m := &t.state.Milestones[i]
		if m.State == StateLocked && m.After == completedID {
			m.State = StateInProgress
		}
	}
}

// FinalizeOutcome applies any pending milestone completions at a terminal
// state, before the session is discarded and play returns to building.
func (t *Tracker) FinalizeOutcome(outcome Outcome, snap Snapshot) []MilestoneEvent {
	events := t.Evaluate(snap)
	slog.Info("session finalized",
		"outcome", outcome.String(),
		"turns", snap.Turn,
		"peak_population", snap.PeakPopulation,
		"milestones_completed", len(events),
	)
	return events
}

// StartNewRound increments the round counter, deals any reward genes into
// the deck, and resets the starter selection for the next build phase.
func (t *Tracker) StartNewRound(rewardGenes []string) {
	t.state.Round++
	for _, id := range rewardGenes {
		if !t.state.InDeck(id) {
			t.state.Deck = append(t.state.Deck, id)
		}
	}
	t.state.Starter = ""
	t.state.StarterCount = DefaultStarterCount
	slog.Info("new round started", "round", t.state.Round, "deck_size", len(t.state.Deck))
}
