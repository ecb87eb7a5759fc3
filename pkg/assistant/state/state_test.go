package state

import (
	"errors"
	"testing"

	"plant-assistant-be/pkg/assistant/tool"

	"github.com/stretchr/testify/assert"
)

func TestNodeErrorMatching(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(NewNodeError(KindRetrieval, NodeRetrieveContext, cause))

	assert.ErrorIs(t, err, ErrRetrieval)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPersistence)

	var ne *NodeError
	assert.ErrorAs(t, err, &ne)
	assert.Equal(t, NodeRetrieveContext, ne.Node)
	assert.Equal(t, "retrieve_context: retrieval failure: connection refused", err.Error())
}

func TestStateHelpers(t *testing.T) {
	s := New(Request{Message: "hi"})
	assert.Equal(t, IntentGeneralQuestion, s.Intent())
	assert.False(t, s.Request.HasImage())

	s.Analysis = &Analysis{Intent: IntentPlantHealth, Entities: Entities{Species: []string{"Monstera"}}}
	s.Invocations = []tool.Invocation{
		{Name: tool.DiagnosePlantHealth, Result: tool.Diagnosis{PlantIdentification: tool.PlantIdentification{Species: "Pothos"}}},
		{Name: tool.GetCareGuide, TimedOut: true, Err: tool.ErrTimeout},
	}

	assert.Equal(t, []string{tool.DiagnosePlantHealth}, s.ToolsUsed())
	assert.Equal(t, []string{"Monstera", "Pothos"}, s.Species())

	d, ok := s.Diagnosis()
	assert.True(t, ok)
	assert.Equal(t, "Pothos", d.PlantIdentification.Species)

	s.Fail(KindTool, NodeDispatchTools, tool.ErrTimeout)
	assert.True(t, s.Failed(ErrTool))
	assert.False(t, s.Failed(ErrGeneration))
}
