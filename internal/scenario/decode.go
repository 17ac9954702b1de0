package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/go-viper/mapstructure/v2"
)

// ErrInvalid is wrapped by every error that rejects scenario content.
var ErrInvalid = errors.New("invalid scenario")

func invalid(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, path, fmt.Sprintf(format, args...))
}

// document mirrors a scenario file. Unknown keys at any level are rejected.
type document struct {
	ID           string           `mapstructure:"id"`
	Name         string           `mapstructure:"name"`
	Description  string           `mapstructure:"description"`
	Code         string           `mapstructure:"code"`
	Instructions []rawInstruction `mapstructure:"instructions"`
}

type rawInstruction struct {
	Type    string      `mapstructure:"type"`
	Line    int         `mapstructure:"line"`
	Payload *rawPayload `mapstructure:"payload"`
}

// rawPayload uses pointers where presence matters for validation.
type rawPayload struct {
	Name     *string          `mapstructure:"name"`
	Type     string           `mapstructure:"type"`
	Value    any              `mapstructure:"value"`
	From     string           `mapstructure:"from"`
	Body     []rawInstruction `mapstructure:"body"`
	Arrow    bool             `mapstructure:"arrow"`
	This     any              `mapstructure:"this"`
	Callback engine.Task      `mapstructure:"callback"`
	Delay    int              `mapstructure:"delay"`
	ID       *string          `mapstructure:"id"`
}

// rawTask is the mapping form of a callback.
type rawTask struct {
	Log      any `mapstructure:"log"`
	Next     any `mapstructure:"scheduleMicrotask"`
	Callback any `mapstructure:"callback"`
}

// requiredFields lists the payload fields each kind cannot run without.
var requiredFields = map[engine.Kind][]string{
	engine.DeclareVar:        {"name"},
	engine.DeclareLet:        {"name"},
	engine.DeclareConst:      {"name"},
	engine.DeclareFunction:   {"name"},
	engine.Initialize:        {"name"},
	engine.Assign:            {"name"},
	engine.Read:              {"name"},
	engine.CallFunction:      {"name"},
	engine.RegisterTimeout:   {"callback"},
	engine.RegisterAsync:     {"callback"},
	engine.ScheduleMicrotask: {"callback"},
}

var taskType = reflect.TypeOf((*engine.Task)(nil)).Elem()

func decodeInto(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			taskHook,
			integerHook,
			valueHook,
		),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// decodeDocument turns a generic document (as produced by the YAML, TOML or
// JSON decoders) into a scenario.
func decodeDocument(doc map[string]any, source string) (*Scenario, error) {
	var d document
	if err := decodeInto(doc, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if d.ID == "" {
		return nil, invalid("id", "missing")
	}
	if _, ok := doc["instructions"]; !ok {
		return nil, invalid("instructions", "missing")
	}
	if len(d.Instructions) == 0 {
		return nil, invalid("instructions", "empty")
	}

	s := &Scenario{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Code:        d.Code,
		Source:      source,
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	var err error
	if s.Instructions, err = convertInstructions(d.Instructions, "instructions"); err != nil {
		return nil, err
	}
	return s, nil
}

func convertInstructions(raw []rawInstruction, path string) ([]engine.Instruction, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]engine.Instruction, 0, len(raw))
	for i, r := range raw {
		instr, err := convertInstruction(r, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
	return out, nil
}

func convertInstruction(r rawInstruction, path string) (engine.Instruction, error) {
	instr := engine.Instruction{Kind: engine.Kind(strings.ToUpper(r.Type)), Line: r.Line}
	if !instr.Kind.Known() {
		return instr, invalid(path+".type", "unknown instruction %q", r.Type)
	}

	raw := r.Payload
	if raw == nil {
		raw = &rawPayload{}
	}
	ppath := path + ".payload"
	present := map[string]bool{"name": raw.Name != nil, "callback": raw.Callback != nil}
	for _, field := range requiredFields[instr.Kind] {
		if !present[field] {
			return instr, invalid(ppath, "%s requires %q", instr.Kind, field)
		}
	}
	if instr.Kind == engine.ClearTimeout && raw.ID == nil && raw.Name == nil {
		return instr, invalid(ppath, "%s requires \"id\" or \"name\"", instr.Kind)
	}
	if raw.Delay < 0 {
		return instr, invalid(ppath+".delay", "negative delay %d", raw.Delay)
	}

	p := &instr.Payload
	if raw.Name != nil {
		p.Name = *raw.Name
	}
	if raw.ID != nil {
		p.ID = *raw.ID
	}
	p.From = raw.From
	p.Arrow = raw.Arrow
	p.Delay = raw.Delay
	p.Callback = raw.Callback
	if instr.Kind == engine.PushContext {
		switch ct := engine.ContextType(raw.Type); ct {
		case "", engine.ContextGlobal, engine.ContextFunction, engine.ContextBlock:
			p.Context = ct
		default:
			return instr, invalid(ppath+".type", "unknown context type %q", raw.Type)
		}
	} else {
		p.Type = raw.Type
	}
	if raw.Value != nil {
		p.Value = engine.NewValue(raw.Value)
	}
	if raw.This != nil {
		p.This = engine.NewValue(raw.This)
	}
	var err error
	if p.Body, err = convertInstructions(raw.Body, ppath+".body"); err != nil {
		return instr, err
	}
	return instr, nil
}

// taskHook builds the task union: a plain string is a label, a mapping
// with "log" (and optionally "scheduleMicrotask") is a chained promise
// reaction and a mapping with "callback" is an opaque callback.
func taskHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != taskType {
		return data, nil
	}
	return decodeTask(data)
}

func decodeTask(data any) (engine.Task, error) {
	switch v := data.(type) {
	case nil:
		return nil, errors.New("empty callback")
	case string:
		return engine.LabelTask{Label: v}, nil
	case map[string]any, map[any]any:
	default:
		return engine.LabelTask{Label: engine.NewValue(normalize(v)).Inspect()}, nil
	}

	var raw rawTask
	if err := decodeInto(data, &raw); err != nil {
		return nil, err
	}
	switch {
	case raw.Log != nil:
		task := engine.ChainedTask{Log: engine.NewValue(raw.Log).Inspect()}
		if raw.Next != nil {
			next, err := decodeTask(raw.Next)
			if err != nil {
				return nil, fmt.Errorf("scheduleMicrotask: %w", err)
			}
			task.Next = next
		}
		return task, nil
	case raw.Callback != nil:
		return engine.CallbackTask{Callback: engine.NewValue(raw.Callback).Inspect()}, nil
	default:
		return nil, errors.New("expected a label, {log, scheduleMicrotask} or {callback}")
	}
}

// integerHook rejects fractional numbers for integer fields.
func integerHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	if f, ok := data.(float64); ok && f != math.Trunc(f) {
		return nil, fmt.Errorf("expected an integer, got %v", f)
	}
	return data, nil
}

// valueHook normalizes numbers bound to untyped fields.
func valueHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Interface || to.NumMethod() != 0 {
		return data, nil
	}
	return normalize(data), nil
}

// normalize collapses integral floats (JSON numbers) so that 5 renders as
// 5 regardless of the source format.
func normalize(raw any) any {
	switch v := raw.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return raw
}
