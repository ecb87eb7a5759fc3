package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		name         string
		providerType string
		apiKey       string
		wantErr      bool
	}{
		{name: "ollama", providerType: "ollama"},
		{name: "huggingface with key", providerType: "huggingface", apiKey: "hf_x"},
		{name: "huggingface without key", providerType: "huggingface", wantErr: true},
		{name: "unknown", providerType: "openai", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLLMProvider(tt.providerType, "llama3", "", tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}
