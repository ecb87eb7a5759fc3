package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare object", input: `{"a":1}`, expected: `{"a":1}`},
		{name: "prose around", input: "Sure! Here it is:\n```json\n{\"a\":{\"b\":2}}\n```", expected: `{"a":{"b":2}}`},
		{name: "no object", input: "no json here", expected: ""},
		{name: "reversed braces", input: "} nope {", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSON(tt.input))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Intent string `json:"intent"`
	}
	assert.NoError(t, DecodeJSON(`result: {"intent":"plant_care"}`, &out))
	assert.Equal(t, "plant_care", out.Intent)

	assert.Error(t, DecodeJSON("nothing", &out))
	assert.Error(t, DecodeJSON("{not json}", &out))
}
