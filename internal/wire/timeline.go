package wire

import (
	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/scenario"
)

// Frame is the snapshot taken after one step.
type Frame struct {
	Step        int          `json:"step" yaml:"step"`
	Instruction string       `json:"instruction" yaml:"instruction"`
	State       engine.State `json:"state" yaml:"state"`
}

// Timeline is a complete recorded run of a scenario: the initial snapshot
// followed by one frame per executed instruction.
type Timeline struct {
	Scenario string       `json:"scenario" yaml:"scenario"`
	Name     string       `json:"name" yaml:"name"`
	Code     string       `json:"code,omitempty" yaml:"code,omitempty"`
	Initial  engine.State `json:"initial" yaml:"initial"`
	Frames   []Frame      `json:"frames" yaml:"frames"`
}

// Record runs s to completion on a fresh engine.
func Record(s *scenario.Scenario, opts ...engine.Option) Timeline {
	e := engine.New(s.Instructions, opts...)
	t := Timeline{
		Scenario: s.ID,
		Name:     s.Name,
		Code:     s.Code,
		Initial:  e.State(),
	}
	for e.HasNextStep() {
		next, _ := e.NextInstruction()
		st := e.Step()
		t.Frames = append(t.Frames, Frame{
			Step:        st.StepsExecuted,
			Instruction: string(next.Kind),
			State:       st,
		})
	}
	return t
}

// Final returns the last snapshot of the run.
func (t Timeline) Final() engine.State {
	if len(t.Frames) == 0 {
		return t.Initial
	}
	return t.Frames[len(t.Frames)-1].State
}
