// Package scenario defines authored scenarios (a snippet of JavaScript plus
// the instruction list that replays it), the file formats they are loaded
// from and the catalog of built-in scenarios.
package scenario

import (
	"fmt"
	"strings"
	"sync"

	"github.com/funvibe/loopviz/internal/engine"
)

// Scenario is a named, immutable instruction program.
type Scenario struct {
	ID          string
	Name        string
	Description string
	// Code is the JavaScript the instructions narrate. It is display-only.
	Code         string
	Instructions []engine.Instruction
	// Source is the file the scenario was loaded from; empty for built-ins.
	Source string
}

// Lines returns the code split into display lines (1-based line numbers in
// instructions index into this slice minus one).
func (s *Scenario) Lines() []string {
	return splitLines(s.Code)
}

// Catalog is an ordered registry of scenarios. It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Scenario
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]*Scenario)}
}

// Register adds s to the catalog. Ids must be unique.
func (c *Catalog) Register(s *Scenario) error {
	if s.ID == "" {
		return fmt.Errorf("scenario %q has no id", s.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[s.ID]; exists {
		return fmt.Errorf("duplicate scenario id %q", s.ID)
	}
	c.byID[s.ID] = s
	c.order = append(c.order, s.ID)
	return nil
}

// Get returns the scenario with the given id.
func (c *Catalog) Get(id string) (*Scenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	return s, ok
}

// List returns the scenarios in registration order.
func (c *Catalog) List() []*Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Scenario, len(c.order))
	for i, id := range c.order {
		out[i] = c.byID[id]
	}
	return out
}

// IDs returns the scenario ids in registration order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of registered scenarios.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func splitLines(code string) []string {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return nil
	}
	return strings.Split(code, "\n")
}
