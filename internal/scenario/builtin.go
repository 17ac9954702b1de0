package scenario

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sync"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var (
	builtinOnce sync.Once
	builtinList []*Scenario
	builtinErr  error
)

func loadBuiltins() {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		builtinErr = err
		return
	}
	for _, entry := range entries {
		name := path.Join("builtin", entry.Name())
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			builtinErr = err
			return
		}
		s, err := Parse(data, FormatYAML, "")
		if err != nil {
			builtinErr = fmt.Errorf("built-in %s: %w", entry.Name(), err)
			return
		}
		builtinList = append(builtinList, s)
	}
}

// Builtins returns the scenarios shipped with the binary in display order.
func Builtins() []*Scenario {
	builtinOnce.Do(loadBuiltins)
	if builtinErr != nil {
		panic(builtinErr)
	}
	return builtinList
}

// Load builds a catalog from the built-in scenarios followed by every
// scenario found in dirs. A file may not reuse a built-in id.
func Load(dirs ...string) (*Catalog, error) {
	c := NewCatalog()
	for _, s := range Builtins() {
		if err := c.Register(s); err != nil {
			return nil, err
		}
	}
	for _, dir := range dirs {
		found, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			if err := c.Register(s); err != nil {
				return nil, fmt.Errorf("%s: %w", s.Source, err)
			}
		}
	}
	return c, nil
}

// Resolve finds a scenario by catalog id, falling back to treating ref as
// a file path.
func (c *Catalog) Resolve(ref string) (*Scenario, error) {
	if s, ok := c.Get(ref); ok {
		return s, nil
	}
	if _, err := FormatOf(ref); err != nil {
		return nil, fmt.Errorf("unknown scenario %q", ref)
	}
	return LoadFile(ref)
}
