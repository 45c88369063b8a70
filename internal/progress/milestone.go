package progress

import (
	"encoding/json"
	"fmt"
)

// MilestoneKind selects which simulation quantity a milestone measures.
type MilestoneKind uint8

const (
	// KindSurviveTurns measures turns survived in a single session.
	KindSurviveTurns MilestoneKind = iota
	// KindPeakEntityCount measures the highest total population reached.
	KindPeakEntityCount
	// KindCumulativeEntityCount measures total entities ever produced.
	KindCumulativeEntityCount
)

var kindNames = map[MilestoneKind]string{
	KindSurviveTurns:          "survive_turns",
	KindPeakEntityCount:       "peak_entity_count",
	KindCumulativeEntityCount: "cumulative_entity_count",
}

// String returns the snake_case kind name.
func (k MilestoneKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the kind as its snake_case name.
func (k MilestoneKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the kind from its snake_case name.
func (k *MilestoneKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for v, n := range kindNames {
		if n == name {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown milestone kind %q", name)
}

// MilestoneState is the lifecycle of a milestone.
type MilestoneState uint8

const (
	StateLocked MilestoneState = iota
	StateInProgress
	StateCompleted
)

var milestoneStateNames = map[MilestoneState]string{
	StateLocked:     "locked",
	StateInProgress: "in_progress",
	StateCompleted:  "completed",
}

// String returns the snake_case state name.
func (s MilestoneState) String() string {
	if name, ok := milestoneStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the state as its snake_case name.
func (s MilestoneState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the state from its snake_case name.
func (s *MilestoneState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for v, n := range milestoneStateNames {
		if n == name {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown milestone state %q", name)
}

// Milestone is an achievement goal with its current progress. Progress only
// ever increases while in progress and is frozen once completed.
type Milestone struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Kind        MilestoneKind `json:"kind"`
	Target      int           `json:"target"`
	RewardEP    int           `json:"reward_ep"`

	// After names a milestone that must complete before this one unlocks.
	// Empty means the milestone starts in progress.
	After string `json:"after,omitempty"`

	State    MilestoneState `json:"state"`
	Progress int            `json:"progress"`
}

// DefaultMilestones returns the milestone table a new game starts with.
func DefaultMilestones() []Milestone {
	ms := []Milestone{
		{ID: "survive_10", Name: "Foothold", Description: "Survive 10 turns", Kind: KindSurviveTurns, Target: 10, RewardEP: 20},
		{ID: "survive_25", Name: "Persistent Infection", Description: "Survive 25 turns", Kind: KindSurviveTurns, Target: 25, RewardEP: 40, After: "survive_10"},
		{ID: "survive_50", Name: "Chronic Carrier", Description: "Survive 50 turns", Kind: KindSurviveTurns, Target: 50, RewardEP: 80, After: "survive_25"},
		{ID: "peak_100", Name: "Local Outbreak", Description: "Reach 100 entities at once", Kind: KindPeakEntityCount, Target: 100, RewardEP: 30},
		{ID: "peak_1000", Name: "Systemic Spread", Description: "Reach 1,000 entities at once", Kind: KindPeakEntityCount, Target: 1000, RewardEP: 60, After: "peak_100"},
		{ID: "cumulative_5000", Name: "Replication Machine", Description: "Produce 5,000 entities in total", Kind: KindCumulativeEntityCount, Target: 5000, RewardEP: 100},
	}
	for i := range ms {
		if ms[i].After == "" {
			ms[i].State = StateInProgress
		}
	}
	return ms
}
