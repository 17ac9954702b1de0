package scenario

import (
	"fmt"

	"github.com/funvibe/loopviz/internal/engine"
	"gopkg.in/yaml.v3"
)

type documentOut struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description,omitempty"`
	Code         string           `yaml:"code,omitempty"`
	Instructions []instructionOut `yaml:"instructions"`
}

type instructionOut struct {
	Type    string         `yaml:"type"`
	Payload map[string]any `yaml:"payload,omitempty"`
	Line    int            `yaml:"line,omitempty"`
}

// Marshal renders s in the YAML scenario format. Parse(Marshal(s)) yields
// the same instructions.
func Marshal(s *Scenario) ([]byte, error) {
	doc := documentOut{
		ID:           s.ID,
		Name:         s.Name,
		Description:  s.Description,
		Code:         s.Code,
		Instructions: encodeInstructions(s.Instructions),
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding scenario %s: %w", s.ID, err)
	}
	return data, nil
}

func encodeInstructions(instrs []engine.Instruction) []instructionOut {
	out := make([]instructionOut, len(instrs))
	for i, instr := range instrs {
		out[i] = instructionOut{
			Type:    string(instr.Kind),
			Payload: encodePayload(instr.Kind, instr.Payload),
			Line:    instr.Line,
		}
	}
	return out
}

func encodePayload(kind engine.Kind, p engine.Payload) map[string]any {
	m := map[string]any{}
	set := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	set("name", p.Name)
	set("from", p.From)
	set("id", p.ID)
	if kind == engine.PushContext {
		set("type", string(p.Context))
	} else {
		set("type", p.Type)
	}
	if v, ok := encodeValue(p.Value); ok {
		m["value"] = v
	}
	if v, ok := encodeValue(p.This); ok {
		m["this"] = v
	}
	if p.Arrow {
		m["arrow"] = true
	}
	if p.Delay != 0 {
		m["delay"] = p.Delay
	}
	if p.Callback != nil {
		m["callback"] = encodeTask(p.Callback)
	}
	if len(p.Body) > 0 {
		m["body"] = encodeInstructions(p.Body)
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func encodeValue(v engine.Value) (any, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case engine.Primitive:
		return v.Raw, true
	default:
		if engine.IsUndefined(v) {
			return nil, false
		}
		return v.Inspect(), true
	}
}

func encodeTask(t engine.Task) any {
	switch t := t.(type) {
	case engine.LabelTask:
		return t.Label
	case engine.ChainedTask:
		m := map[string]any{"log": t.Log}
		if t.Next != nil {
			m["scheduleMicrotask"] = encodeTask(t.Next)
		}
		return m
	case engine.CallbackTask:
		return map[string]any{"callback": t.Callback}
	default:
		return t.Describe()
	}
}
