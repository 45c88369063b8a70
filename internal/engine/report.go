package engine

import (
	"github.com/google/uuid"

	"github.com/talgya/virus-sandbox/internal/catalog"
)

// PopKey addresses one population bucket: an entity type at a location.
type PopKey struct {
	Entity   string
	Location catalog.Location
}

// PopulationCount is one population bucket in a snapshot, suitable for
// serialization.
type PopulationCount struct {
	Entity   string           `json:"entity"`
	Location catalog.Location `json:"location"`
	Count    int              `json:"count"`
}

// TransitionFire records one transition having triggered during a turn.
type TransitionFire struct {
	Name   string `json:"name"`
	GeneID string `json:"gene_id"`
	Count  int    `json:"count"`
}

// TurnReport describes everything that happened in a single turn.
type TurnReport struct {
	SessionID uuid.UUID `json:"session_id"`
	Turn      int       `json:"turn"`

	Triggered []TransitionFire `json:"triggered,omitempty"`
	Produced  int              `json:"produced"`
	Degraded  int              `json:"degraded"`

	Interferon float64 `json:"interferon"`
	HostStress float64 `json:"host_stress"`

	ClassTotals     map[string]int `json:"class_totals"`
	TotalPopulation int            `json:"total_population"`

	// Underflows counts population buckets clamped to zero this turn. A
	// diagnostic, never an error.
	Underflows int `json:"underflows,omitempty"`

	// Phase after this turn; Victory and Extinction are terminal.
	Phase Phase `json:"phase"`
}
