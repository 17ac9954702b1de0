// Package wire serializes snapshots and recorded timelines as JSON, YAML or
// canonical CBOR.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CBOR Format = "cbor"
)

// Formats lists the supported encodings.
var Formats = []Format{JSON, YAML, CBOR}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ParseFormat accepts a format name case-insensitively ("yml" is YAML).
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "cbor":
		return CBOR, nil
	}
	return "", fmt.Errorf("wire: unknown format %q (want json, yaml or cbor)", name)
}

// Extension is the conventional file extension for f.
func (f Format) Extension() string {
	return "." + string(f)
}

// Binary reports whether f should not be written to a terminal.
func (f Format) Binary() bool {
	return f == CBOR
}

// Encode serializes v.
func Encode(f Format, v any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case JSON:
		data, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case YAML:
		data, err = yaml.Marshal(v)
	case CBOR:
		data, err = cborEncMode.Marshal(v)
	default:
		return nil, fmt.Errorf("wire: unknown format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", f, err)
	}
	return data, nil
}

// Decode deserializes data into v.
func Decode(f Format, data []byte, v any) error {
	var err error
	switch f {
	case JSON:
		err = json.Unmarshal(data, v)
	case YAML:
		err = yaml.Unmarshal(data, v)
	case CBOR:
		err = cbor.Unmarshal(data, v)
	default:
		return fmt.Errorf("wire: unknown format %q", f)
	}
	if err != nil {
		return fmt.Errorf("wire: decode %s: %w", f, err)
	}
	return nil
}
