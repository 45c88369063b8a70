package catalog

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultRemovalCost is charged when a gene definition does not name its own
// removal fee.
const DefaultRemovalCost = 10

// ValidationError is returned when a catalog source fails validation. The
// catalog refuses to load; no partial catalog is ever produced.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "catalog validation: " + e.Problems[0]
	}
	return fmt.Sprintf("catalog validation: %d problems, first: %s", len(e.Problems), e.Problems[0])
}

// ErrUnknownGene reports a lookup of a gene identifier the catalog does not
// define.
type ErrUnknownGene struct {
	ID string
}

func (e *ErrUnknownGene) Error() string {
	return fmt.Sprintf("unknown gene %q", e.ID)
}

// Catalog holds validated gene and entity definitions. It is immutable after
// load; accessors return copies where callers could otherwise mutate shared
// state.
type Catalog struct {
	entities map[string]EntityType
	genes    map[string]Gene
	order    []string // gene IDs in declaration order
}

type document struct {
	Entities []EntityType `yaml:"entities"`
	Genes    []Gene       `yaml:"genes"`
}

// Load reads and validates a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	c := &Catalog{
		entities: make(map[string]EntityType, len(doc.Entities)),
		genes:    make(map[string]Gene, len(doc.Genes)),
	}

	var problems []string

	for _, e := range doc.Entities {
		if e.Name == "" {
			problems = append(problems, "entity with empty name")
			continue
		}
		if _, dup := c.entities[e.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate entity %q", e.Name))
			continue
		}
		c.entities[e.Name] = e
	}

	for _, g := range doc.Genes {
		if g.ID == "" {
			problems = append(problems, "gene with empty id")
			continue
		}
		if _, dup := c.genes[g.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate gene %q", g.ID))
			continue
		}
		if g.RemovalCost == 0 {
			g.RemovalCost = DefaultRemovalCost
		}
		problems = append(problems, validateGene(g, c.entities)...)
		c.genes[g.ID] = g
		c.order = append(c.order, g.ID)
	}

	problems = append(problems, validatePrerequisites(c.genes)...)

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return c, nil
}

// LoadFile loads a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func validateGene(g Gene, entities map[string]EntityType) []string {
	var problems []string

	if g.Cost < 0 {
		problems = append(problems, fmt.Sprintf("gene %q: negative cost %d", g.ID, g.Cost))
	}
	if g.RemovalCost < 0 {
		problems = append(problems, fmt.Sprintf("gene %q: negative removal cost %d", g.ID, g.RemovalCost))
	}

	for i, t := range g.Transitions {
		ref := fmt.Sprintf("gene %q transition %d (%s)", g.ID, i, t.Name)
		if t.Probability < 0 || t.Probability > 1 {
			problems = append(problems, fmt.Sprintf("%s: probability %g outside [0,1]", ref, t.Probability))
		}
		if len(t.Sources) == 0 {
			problems = append(problems, ref+": no sources")
		}
		for _, s := range t.Sources {
			if _, ok := entities[s.Entity]; !ok {
				problems = append(problems, fmt.Sprintf("%s: undefined source entity %q", ref, s.Entity))
			}
			if s.Count <= 0 {
				problems = append(problems, fmt.Sprintf("%s: source %q count %d must be positive", ref, s.Entity, s.Count))
			}
		}
		for _, o := range t.Outputs {
			if _, ok := entities[o.Entity]; !ok {
				problems = append(problems, fmt.Sprintf("%s: undefined output entity %q", ref, o.Entity))
			}
			if o.Count <= 0 {
				problems = append(problems, fmt.Sprintf("%s: output %q count %d must be positive", ref, o.Entity, o.Count))
			}
		}
	}
	return problems
}

// validatePrerequisites rejects references to undefined genes and any cycle
// in the prerequisite relation, found by depth-first reachability.
func validatePrerequisites(genes map[string]Gene) []string {
	var problems []string

	ids := make([]string, 0, len(genes))
	for id := range genes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, req := range genes[id].Requires {
			if _, ok := genes[req]; !ok {
				problems = append(problems, fmt.Sprintf("gene %q: undefined prerequisite %q", id, req))
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(genes))

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return true // back edge: cycle
		case done:
			return false
		}
		state[id] = visiting
		for _, req := range genes[id].Requires {
			if _, ok := genes[req]; !ok {
				continue
			}
			if visit(req) {
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, id := range ids {
		if state[id] == unvisited && visit(id) {
			problems = append(problems, fmt.Sprintf("prerequisite cycle involving gene %q", id))
		}
	}
	return problems
}

// Get returns the gene with the given identifier.
func (c *Catalog) Get(id string) (Gene, error) {
	g, ok := c.genes[id]
	if !ok {
		return Gene{}, &ErrUnknownGene{ID: id}
	}
	return g, nil
}

// Has reports whether the catalog defines the given gene.
func (c *Catalog) Has(id string) bool {
	_, ok := c.genes[id]
	return ok
}

// Entity returns the entity type with the given name.
func (c *Catalog) Entity(name string) (EntityType, bool) {
	e, ok := c.entities[name]
	return e, ok
}

// Genes returns all genes in declaration order.
func (c *Catalog) Genes() []Gene {
	out := make([]Gene, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.genes[id])
	}
	return out
}

// Entities returns all entity types sorted by name.
func (c *Catalog) Entities() []EntityType {
	out := make([]EntityType, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StarterEntities returns the entity types eligible to seed a simulation,
// sorted by name.
func (c *Catalog) StarterEntities() []EntityType {
	var out []EntityType
	for _, e := range c.entities {
		if e.IsStarter {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAvailable returns the deck genes that are not installed and whose
// prerequisites are all in the installed set, in deck order.
func (c *Catalog) ListAvailable(installed map[string]bool, deck []string) []Gene {
	var out []Gene
	for _, id := range deck {
		g, ok := c.genes[id]
		if !ok || installed[id] {
			continue
		}
		satisfied := true
		for _, req := range g.Requires {
			if !installed[req] {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, g)
		}
	}
	return out
}
