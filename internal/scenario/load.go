package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/funvibe/loopviz/internal/config"
	"gopkg.in/yaml.v3"
)

// Format is a scenario file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported scenario file %s (want one of %s)", path, strings.Join(config.ScenarioFileExtensions, ", "))
	}
}

// Parse decodes one scenario. source is used in error messages and
// recorded on the scenario.
func Parse(data []byte, format Format, source string) (*Scenario, error) {
	doc := map[string]any{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", source, err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", source, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", source, err)
		}
	default:
		return nil, fmt.Errorf("parsing %s: unknown format %q", source, format)
	}
	s, err := decodeDocument(doc, source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return s, nil
}

// LoadFile reads a scenario file.
func LoadFile(path string) (*Scenario, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return Parse(data, format, path)
}

// LoadDir reads every scenario file directly inside dir, in file name
// order. Files with other extensions are ignored.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}
	var out []*Scenario
	for _, entry := range entries {
		if entry.IsDir() || !config.IsScenarioFile(entry.Name()) {
			continue
		}
		s, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
