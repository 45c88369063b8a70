package game

import (
	"github.com/talgya/virus-sandbox/internal/engine"
	"github.com/talgya/virus-sandbox/internal/progress"
)

// EventKind identifies an observational event emitted by the core. The
// presentation layer consumes these; it never feeds state back except
// through the command surface.
type EventKind string

const (
	EventEconomyChanged     EventKind = "economy_changed"
	EventGraphChanged       EventKind = "graph_changed"
	EventTurnCompleted      EventKind = "turn_completed"
	EventMilestoneCompleted EventKind = "milestone_completed"
	EventVictoryReached     EventKind = "victory_reached"
	EventExtinctionReached  EventKind = "extinction_reached"
)

// Event is one observational record. Only the fields relevant to the kind
// are set.
type Event struct {
	Kind  EventKind `json:"kind"`
	Round int       `json:"round"`
	EP    int       `json:"ep"`

	Report    *engine.TurnReport       `json:"report,omitempty"`
	Milestone *progress.MilestoneEvent `json:"milestone,omitempty"`
	Stats     *progress.Snapshot       `json:"stats,omitempty"`
}

// maxEventLog bounds the in-memory event log.
const maxEventLog = 256

func (g *Game) emit(e Event) {
	e.Round = g.state.Round
	e.EP = g.state.Ledger.Balance()

	g.events = append(g.events, e)
	if len(g.events) > maxEventLog {
		g.events = g.events[len(g.events)-maxEventLog:]
	}

	if g.subscriber != nil {
		// Never block the engine on a slow consumer.
		select {
		case g.subscriber <- e:
		default:
		}
	}
}

// Subscribe returns a channel receiving future events. Events are dropped
// rather than blocking when the buffer is full. Only one subscriber is
// supported; calling Subscribe again replaces the previous channel.
func (g *Game) Subscribe(buffer int) <-chan Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriber = make(chan Event, buffer)
	return g.subscriber
}

// Events returns up to limit most recent events, oldest first.
func (g *Game) Events(limit int) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	if limit <= 0 || limit > len(g.events) {
		limit = len(g.events)
	}
	out := make([]Event, limit)
	copy(out, g.events[len(g.events)-limit:])
	return out
}
