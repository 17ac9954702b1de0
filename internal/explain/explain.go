// Package explain holds the teaching text shown next to each step: a short
// explanation per instruction kind and a glossary of concepts.
package explain

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/funvibe/loopviz/internal/engine"
	"gopkg.in/yaml.v3"
)

//go:embed explanations.yaml
var catalogYAML []byte

// Concept is a glossary entry.
type Concept struct {
	Name       string `yaml:"-" json:"name"`
	Title      string `yaml:"title" json:"title"`
	Definition string `yaml:"definition" json:"definition"`
	Details    string `yaml:"details" json:"details"`
	Example    string `yaml:"example,omitempty" json:"example,omitempty"`
}

// Catalog maps instruction kinds to explanations and concept names to
// glossary entries. The zero value is empty; use Default or Parse.
type Catalog struct {
	Instructions map[engine.Kind]engine.Explanation `yaml:"instructions"`
	Concepts     map[string]Concept                 `yaml:"concepts"`
}

var defaultCatalog *Catalog

func init() {
	c, err := Parse(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("explain: embedded catalog: %v", err))
	}
	defaultCatalog = c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Parse decodes a catalog and checks that every referenced concept exists.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse explanations: %w", err)
	}
	for name, concept := range c.Concepts {
		concept.Name = name
		c.Concepts[name] = concept
	}
	for kind, x := range c.Instructions {
		if x.Concept == "" {
			continue
		}
		if _, ok := c.Concepts[x.Concept]; !ok {
			return nil, fmt.Errorf("explanation for %s references unknown concept %q", kind, x.Concept)
		}
	}
	return &c, nil
}

// Explain implements engine.Explainer.
func (c *Catalog) Explain(kind engine.Kind) (engine.Explanation, bool) {
	x, ok := c.Instructions[kind]
	return x, ok
}

// Concept looks up a glossary entry by name.
func (c *Catalog) Concept(name string) (Concept, bool) {
	concept, ok := c.Concepts[name]
	return concept, ok
}

// ConceptNames returns the glossary entries in alphabetical order.
func (c *Catalog) ConceptNames() []string {
	names := make([]string, 0, len(c.Concepts))
	for name := range c.Concepts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
