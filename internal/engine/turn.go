package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/talgya/virus-sandbox/internal/catalog"
)

// AdvanceTurn runs one turn of the simulation. Valid only while Running.
//
// The per-turn order is fixed: authored transitions in graph order, global
// degradation, interferon decay, history recording, terminal check. Combined
// with the single seeded stream this makes a session fully reproducible.
func (s *Simulator) AdvanceTurn() (TurnReport, error) {
	if s.phase != PhaseRunning {
		return TurnReport{}, fmt.Errorf("advance: %w: phase %s", ErrSimulationState, s.phase)
	}

	s.turn++
	report := TurnReport{SessionID: s.sessionID, Turn: s.turn}

	// Authored transitions, in install order then declaration order.
	for _, t := range s.graph.Transitions {
		n := s.availableUnits(t.Sources)
		if n == 0 {
			continue
		}

		p := t.Probability
		if t.DegradationSensitive {
			// Host degradation machinery works harder under interferon.
			p = clamp(p*(1+s.interferon/100), 0, 1)
		}

		k := s.stream.Binomial(n, p)
		if k == 0 {
			continue
		}

		for _, src := range t.Sources {
			if src.Catalytic {
				continue
			}
			key := PopKey{Entity: src.Entity, Location: src.Location}
			s.pop[key] -= k * src.Count
			if s.pop[key] < 0 {
				// Overlapping sources can overdraw a shared bucket; clamp
				// and flag, never fail.
				s.pop[key] = 0
				s.underflows++
				report.Underflows++
				slog.Warn("population underflow clamped",
					"transition", t.Name, "entity", src.Entity,
					"location", src.Location.String(), "turn", s.turn)
			}
		}
		for _, out := range t.Outputs {
			key := PopKey{Entity: out.Entity, Location: out.Location}
			s.pop[key] += k * out.Count
			s.cumulative += k * out.Count
			report.Produced += k * out.Count
		}

		s.interferon = clamp(s.interferon+t.Interferon*float64(k), 0, 100)
		report.Triggered = append(report.Triggered, TransitionFire{Name: t.Name, GeneID: t.GeneID, Count: k})
	}

	// Global degradation, scaled by interferon and host stress, independent
	// of authored transitions.
	stress := s.field.Stress(s.turn)
	report.HostStress = stress
	pDeg := clamp(s.params.BaseDegradation*(s.interferon/100)*stress, 0, 1)
	if pDeg > 0 {
		for _, key := range sortedKeys(s.pop) {
			n := s.pop[key]
			if n <= 0 {
				continue
			}
			k := s.stream.Binomial(n, pDeg)
			if k > 0 {
				s.pop[key] = n - k
				report.Degraded += k
			}
		}
	}

	s.interferon = clamp(s.interferon-s.params.InterferonDecay, 0, 100)
	report.Interferon = s.interferon

	// Drop empty buckets so snapshots and sorts stay small.
	for key, n := range s.pop {
		if n <= 0 {
			delete(s.pop, key)
		}
	}

	total := s.TotalPopulation()
	if total > s.peak {
		s.peak = total
	}
	report.TotalPopulation = total
	report.ClassTotals = s.classTotals()

	s.history.Push(HistoryRecord{
		Turn:        s.turn,
		ClassTotals: report.ClassTotals,
		Total:       total,
		Interferon:  s.interferon,
	})

	switch {
	case total == 0:
		s.phase = PhaseExtinction
		slog.Info("population extinct", "session", s.sessionID, "turn", s.turn)
	case total >= s.params.VictoryThreshold:
		s.phase = PhaseVictory
		slog.Info("victory threshold reached",
			"session", s.sessionID, "turn", s.turn,
			"population", humanize.Comma(int64(total)))
	}
	report.Phase = s.phase

	return report, nil
}

// Advance runs up to n turns, calling fn after each. It stops early when a
// terminal phase is reached, when fn returns false, or when ctx is cancelled
// at a yield point (every YieldStride turns). Turns already applied are
// never rolled back; their reports are returned alongside any error.
func (s *Simulator) Advance(ctx context.Context, n int, fn func(TurnReport) bool) ([]TurnReport, error) {
	if s.phase != PhaseRunning {
		return nil, fmt.Errorf("advance: %w: phase %s", ErrSimulationState, s.phase)
	}

	var reports []TurnReport
	for i := 0; i < n; i++ {
		if i > 0 && i%s.params.YieldStride == 0 {
			select {
			case <-ctx.Done():
				return reports, ctx.Err()
			default:
			}
		}

		report, err := s.AdvanceTurn()
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)

		if fn != nil && !fn(report) {
			break
		}
		if report.Phase.Terminal() {
			break
		}
	}
	return reports, nil
}

// availableUnits returns how many times the sources can be satisfied from
// the current population: the minimum over sources of count/required.
func (s *Simulator) availableUnits(sources []catalog.TransitionSource) int {
	n := -1
	for _, src := range sources {
		have := s.pop[PopKey{Entity: src.Entity, Location: src.Location}]
		units := have / src.Count
		if n < 0 || units < n {
			n = units
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

func (s *Simulator) classTotals() map[string]int {
	totals := make(map[string]int)
	for key, n := range s.pop {
		if n <= 0 {
			continue
		}
		class := "unknown"
		if e, ok := s.catalog.Entity(key.Entity); ok {
			class = e.Class.String()
		}
		totals[class] += n
	}
	return totals
}

func sortedKeys(pop map[PopKey]int) []PopKey {
	keys := make([]PopKey, 0, len(pop))
	for key := range pop {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Entity != keys[j].Entity {
			return keys[i].Entity < keys[j].Entity
		}
		return keys[i].Location < keys[j].Location
	})
	return keys
}

func popSnapshot(pop map[PopKey]int) []PopulationCount {
	var out []PopulationCount
	for _, key := range sortedKeys(pop) {
		if pop[key] <= 0 {
			continue
		}
		out = append(out, PopulationCount{Entity: key.Entity, Location: key.Location, Count: pop[key]})
	}
	return out
}
