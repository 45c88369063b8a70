// Package catalog provides the immutable gene and entity definitions the
// rest of the engine is built on. Definitions are loaded once from YAML,
// validated, and never mutated afterwards.
package catalog

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// EntityClass is the closed set of biological classes an entity belongs to.
type EntityClass uint8

const (
	ClassVirion EntityClass = iota
	ClassRNA
	ClassDNA
	ClassProtein
	ClassComplex
)

var classNames = map[EntityClass]string{
	ClassVirion:  "virion",
	ClassRNA:     "rna",
	ClassDNA:     "dna",
	ClassProtein: "protein",
	ClassComplex: "complex",
}

var classValues = map[string]EntityClass{
	"virion":  ClassVirion,
	"rna":     ClassRNA,
	"dna":     ClassDNA,
	"protein": ClassProtein,
	"complex": ClassComplex,
}

// String returns the lowercase class name.
func (c EntityClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// Classes returns all entity classes in declaration order.
func Classes() []EntityClass {
	return []EntityClass{ClassVirion, ClassRNA, ClassDNA, ClassProtein, ClassComplex}
}

// MarshalJSON encodes the class as its lowercase name.
func (c EntityClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalYAML decodes a class from its lowercase name.
func (c *EntityClass) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	v, ok := classValues[name]
	if !ok {
		return fmt.Errorf("unknown entity class %q", name)
	}
	*c = v
	return nil
}

// Location is the closed set of cellular compartments entities occupy.
type Location uint8

const (
	LocExtracellular Location = iota
	LocMembrane
	LocEndosome
	LocCytoplasm
	LocNucleus
)

var locationNames = map[Location]string{
	LocExtracellular: "extracellular",
	LocMembrane:      "membrane",
	LocEndosome:      "endosome",
	LocCytoplasm:     "cytoplasm",
	LocNucleus:       "nucleus",
}

var locationValues = map[string]Location{
	"extracellular": LocExtracellular,
	"membrane":      LocMembrane,
	"endosome":      LocEndosome,
	"cytoplasm":     LocCytoplasm,
	"nucleus":       LocNucleus,
}

// String returns the lowercase location name.
func (l Location) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return "unknown"
}

// Locations returns all locations in outside-in display order.
func Locations() []Location {
	return []Location{LocExtracellular, LocMembrane, LocEndosome, LocCytoplasm, LocNucleus}
}

// MarshalJSON encodes the location as its lowercase name.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a location from its lowercase name.
func (l *Location) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := locationValues[name]
	if !ok {
		return fmt.Errorf("unknown location %q", name)
	}
	*l = v
	return nil
}

// UnmarshalYAML decodes a location from its lowercase name.
func (l *Location) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	v, ok := locationValues[name]
	if !ok {
		return fmt.Errorf("unknown location %q", name)
	}
	*l = v
	return nil
}

// EntityType is a named kind of simulated entity. Each type belongs to
// exactly one class and lives at exactly one location.
type EntityType struct {
	Name        string      `json:"name" yaml:"name"`
	Class       EntityClass `json:"class" yaml:"class"`
	Location    Location    `json:"location" yaml:"location"`
	IsStarter   bool        `json:"is_starter" yaml:"is_starter"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// TransitionSource is one input requirement of a transition. When Catalytic
// is set the source count is left unchanged by a trigger.
type TransitionSource struct {
	Entity    string   `json:"entity" yaml:"entity"`
	Location  Location `json:"location" yaml:"location"`
	Count     int      `json:"count" yaml:"count"`
	Catalytic bool     `json:"catalytic,omitempty" yaml:"catalytic,omitempty"`
}

// TransitionOutput is one product of a transition.
type TransitionOutput struct {
	Entity   string   `json:"entity" yaml:"entity"`
	Location Location `json:"location" yaml:"location"`
	Count    int      `json:"count" yaml:"count"`
}

// Transition converts source entities into output entities with a trigger
// probability. Transitions are immutable once the catalog is loaded.
type Transition struct {
	Name        string             `json:"name" yaml:"name"`
	Sources     []TransitionSource `json:"sources" yaml:"sources"`
	Outputs     []TransitionOutput `json:"outputs" yaml:"outputs"`
	Probability float64            `json:"probability" yaml:"probability"`

	// Interferon is added to the global interferon level per triggered unit.
	Interferon float64 `json:"interferon,omitempty" yaml:"interferon,omitempty"`

	// DegradationSensitive transitions trigger more readily as interferon
	// rises (host degradation machinery acting on viral material).
	DegradationSensitive bool `json:"degradation_sensitive,omitempty" yaml:"degradation_sensitive,omitempty"`
}

// Gene is a purchasable unit granting one or more transitions.
type Gene struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Cost is the EP price to install. RemovalCost is charged on removal;
	// the original install cost is never refunded.
	Cost        int `json:"cost" yaml:"cost"`
	RemovalCost int `json:"removal_cost" yaml:"removal_cost"`

	// Requires lists gene IDs that must be installed first.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// IsPolymerase marks the gene as occupying a polymerase slot. The
	// number of simultaneously installed polymerase genes is capped.
	IsPolymerase bool `json:"is_polymerase,omitempty" yaml:"is_polymerase,omitempty"`

	Transitions []Transition `json:"transitions" yaml:"transitions"`
}
