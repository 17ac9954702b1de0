package explain

import (
	"testing"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCoversEveryKind(t *testing.T) {
	c := Default()
	for _, kind := range engine.Kinds {
		x, ok := c.Explain(kind)
		if assert.True(t, ok, "missing explanation for %s", kind) {
			assert.NotEmpty(t, x.Title, kind)
			assert.NotEmpty(t, x.Description, kind)
		}
	}
}

func TestConceptLookup(t *testing.T) {
	c := Default()

	tdz, ok := c.Concept("tdz")
	require.True(t, ok)
	assert.Equal(t, "tdz", tdz.Name)
	assert.Contains(t, tdz.Definition, "ReferenceError")

	_, ok = c.Concept("monads")
	assert.False(t, ok)

	names := c.ConceptNames()
	assert.Contains(t, names, "event-loop")
	assert.IsIncreasing(t, names)
}

func TestParseRejectsDanglingConcept(t *testing.T) {
	_, err := Parse([]byte(`
instructions:
  LOG:
    title: Console Output
    description: prints
    concept: nowhere
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestCatalogDrivesEngine(t *testing.T) {
	e := engine.New([]engine.Instruction{
		{Kind: engine.PushContext, Payload: engine.Payload{Name: "global", Context: engine.ContextGlobal}},
	}, engine.WithExplainer(Default()))

	st := e.Step()
	require.NotNil(t, st.Explanation)
	assert.Equal(t, "Execution Context Created", st.Explanation.Title)
	assert.Equal(t, "execution-context", st.Explanation.Concept)
}
