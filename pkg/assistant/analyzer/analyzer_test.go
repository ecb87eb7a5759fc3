package analyzer

import (
	"context"
	"testing"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/assistant/tool"
	"plant-assistant-be/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(fake *llmtest.Fake) *Analyzer {
	registry := tool.NewRegistry().MustRegister(tool.Builtins(fake, nil)...)
	return New(fake, registry, logger.NewNopLogger())
}

func TestExtractSymptoms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "vietnamese yellowing", input: "Cây bị vàng lá", expected: []string{"yellowing leaves"}},
		{name: "english mixed", input: "My fern is wilting and has brown spots", expected: []string{"brown spots", "wilting"}},
		{name: "vietnamese pests and root rot", input: "Cây có rệp và bị thối rễ", expected: []string{"pests", "root rot"}},
		{name: "nothing", input: "Hello there!", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractSymptoms(tt.input))
		})
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("parses classification and drops unknown tools", func(t *testing.T) {
		fake := &llmtest.Fake{Reply: `{"intent":"Plant_Care","confidence":0.9,"species":["Monstera","Ficus"],
"keywords":["water"],"tools":[{"name":"get_care_guide","params":{"species":"Monstera"}},{"name":"book_flight","params":{}}]}`}

		analysis, err := newAnalyzer(fake).Analyze(ctx, state.Request{Message: "How often should I water my monstera?"}, nil)
		require.NoError(t, err)

		assert.Equal(t, state.IntentPlantCare, analysis.Intent)
		assert.Equal(t, 0.9, analysis.Confidence)
		assert.Equal(t, []string{"Monstera"}, analysis.Entities.Species, "species not in the text are dropped")
		assert.True(t, analysis.ToolsNeeded)
		require.Len(t, analysis.Tools, 1)
		assert.Equal(t, tool.GetCareGuide, analysis.Tools[0].Name)
	})

	t.Run("species from history are kept", func(t *testing.T) {
		fake := &llmtest.Fake{Reply: `{"intent":"plant_care","confidence":0.8,"species":["Pothos"]}`}
		history := []*entity.ChatMessage{{Role: "user", Chat: "I just bought a pothos"}}

		analysis, err := newAnalyzer(fake).Analyze(ctx, state.Request{Message: "how much light does it need?"}, history)
		require.NoError(t, err)
		assert.Equal(t, []string{"Pothos"}, analysis.Entities.Species)
		assert.False(t, analysis.ToolsNeeded)
	})

	t.Run("classifier error falls back", func(t *testing.T) {
		fake := &llmtest.Fake{FailTimes: 1}

		analysis, err := newAnalyzer(fake).Analyze(ctx, state.Request{Message: "Cây bị vàng lá", Image: "aGVsbG8="}, nil)
		require.Error(t, err)
		require.NotNil(t, analysis)

		assert.Equal(t, state.IntentGeneralQuestion, analysis.Intent)
		assert.Equal(t, FallbackConfidence, analysis.Confidence)
		assert.False(t, analysis.ToolsNeeded)
		assert.Empty(t, analysis.Tools)
		assert.Equal(t, []string{"yellowing leaves"}, analysis.Entities.Symptoms)
	})

	t.Run("garbage output falls back", func(t *testing.T) {
		fake := &llmtest.Fake{Reply: "I think the user is asking about plants."}

		analysis, err := newAnalyzer(fake).Analyze(ctx, state.Request{Message: "hi"}, nil)
		assert.Error(t, err)
		assert.Equal(t, state.IntentGeneralQuestion, analysis.Intent)
	})

	t.Run("unknown intent is normalized", func(t *testing.T) {
		fake := &llmtest.Fake{Reply: `{"intent":"weather","confidence":0.95}`}

		analysis, err := newAnalyzer(fake).Analyze(ctx, state.Request{Message: "is it raining?"}, nil)
		require.NoError(t, err)
		assert.Equal(t, state.IntentGeneralQuestion, analysis.Intent)
		assert.Equal(t, FallbackConfidence, analysis.Confidence)
	})

	t.Run("image adds diagnosis with notes", func(t *testing.T) {
		fake := &llmtest.Fake{Reply: `{"intent":"plant_health","confidence":0.7}`}

		analysis, err := newAnalyzer(fake).Analyze(ctx, state.Request{Message: "what is wrong?", Image: "aGVsbG8="}, nil)
		require.NoError(t, err)

		require.Len(t, analysis.Tools, 1)
		assert.True(t, analysis.ToolsNeeded)
		assert.Equal(t, tool.DiagnosePlantHealth, analysis.Tools[0].Name)
		assert.Equal(t, "aGVsbG8=", analysis.Tools[0].Params["image_data"])
		assert.Equal(t, "what is wrong?", analysis.Tools[0].Params["user_notes"])
	})
}
