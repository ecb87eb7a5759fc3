// Package analyzer classifies a user turn and decides which tools it needs.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/assistant/tool"
	"plant-assistant-be/pkg/llm"
)

const (
	FallbackConfidence = 0.3
	historyTurns       = 4
)

type Analyzer struct {
	llm      llm.LLMProvider
	registry *tool.Registry
	logger   logger.ILogger
}

func New(provider llm.LLMProvider, registry *tool.Registry, logger logger.ILogger) *Analyzer {
	return &Analyzer{
		llm:      provider,
		registry: registry,
		logger:   logger,
	}
}

type llmAnalysis struct {
	Intent     string      `json:"intent"`
	Confidence float64     `json:"confidence"`
	Species    []string    `json:"species"`
	Symptoms   []string    `json:"symptoms"`
	Keywords   []string    `json:"keywords"`
	Tools      []tool.Call `json:"tools"`
}

// Analyze always returns a usable Analysis. A non-nil error means the
// classifier failed and the result is the generic fallback.
func (a *Analyzer) Analyze(ctx context.Context, req state.Request, history []*entity.ChatMessage) (*state.Analysis, error) {
	symptoms := extractSymptoms(req.Message)

	response, err := a.llm.Generate(ctx, a.buildPrompt(req, history), llm.WithTemperature(0.0), llm.WithJSON())
	if err != nil {
		return a.fallback(symptoms), fmt.Errorf("classify: %w", err)
	}

	var parsed llmAnalysis
	if err := llm.DecodeJSON(response, &parsed); err != nil {
		a.logger.Warn("ANALYZER", "Unparseable classifier output", map[string]interface{}{
			"response": truncate(response, 200),
			"error":    err.Error(),
		})
		return a.fallback(symptoms), fmt.Errorf("parse classification: %w", err)
	}

	analysis := &state.Analysis{
		Intent:     strings.ToLower(strings.TrimSpace(parsed.Intent)),
		Confidence: clamp01(parsed.Confidence),
		Entities: state.Entities{
			Species:  groundedSpecies(parsed.Species, req.Message, history),
			Symptoms: mergeUnique(symptoms, parsed.Symptoms),
		},
		Keywords: parsed.Keywords,
	}
	if !state.ValidIntent(analysis.Intent) {
		analysis.Intent = state.IntentGeneralQuestion
		analysis.Confidence = FallbackConfidence
	}
	if analysis.Intent == state.IntentGeneralQuestion && len(analysis.Entities.Symptoms) > 0 && soundsUnhealthy(req.Message) {
		analysis.Intent = state.IntentPlantHealth
	}

	for _, call := range parsed.Tools {
		if !a.registry.Has(call.Name) {
			a.logger.Debug("ANALYZER", "Dropping unregistered tool", map[string]interface{}{"tool": call.Name})
			continue
		}
		analysis.Tools = append(analysis.Tools, call)
	}
	a.attachImage(analysis, req)
	analysis.ToolsNeeded = len(analysis.Tools) > 0

	a.logger.Info("ANALYZER", "Turn analyzed", map[string]interface{}{
		"intent":     analysis.Intent,
		"confidence": analysis.Confidence,
		"tools":      callNames(analysis.Tools),
		"symptoms":   analysis.Entities.Symptoms,
	})
	return analysis, nil
}

func (a *Analyzer) fallback(symptoms []string) *state.Analysis {
	return &state.Analysis{
		Intent:     state.IntentGeneralQuestion,
		Confidence: FallbackConfidence,
		Entities:   state.Entities{Symptoms: symptoms},
	}
}

// attachImage makes sure an attached photo is diagnosed, carrying the image and the message as notes.
func (a *Analyzer) attachImage(analysis *state.Analysis, req state.Request) {
	if !req.HasImage() || !a.registry.Has(tool.DiagnosePlantHealth) {
		return
	}

	idx := -1
	for i, c := range analysis.Tools {
		if c.Name == tool.DiagnosePlantHealth {
			idx = i
			break
		}
	}
	if idx == -1 {
		analysis.Tools = append([]tool.Call{{Name: tool.DiagnosePlantHealth}}, analysis.Tools...)
		idx = 0
	}

	params := map[string]any{}
	if req.Image != "" {
		params["image_data"] = req.Image
	}
	if req.Message != "" {
		params["user_notes"] = truncate(req.Message, 2000)
	}
	analysis.Tools[idx].Params = params
}

func (a *Analyzer) buildPrompt(req state.Request, history []*entity.ChatMessage) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You analyze messages sent to a plant care assistant. You do NOT answer them.\n")
	prompt.WriteString("</system>\n\n")

	if len(history) > 0 {
		prompt.WriteString("<recent_conversation>\n")
		start := max(0, len(history)-historyTurns)
		for _, m := range history[start:] {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", m.Role, truncate(m.Chat, 300)))
		}
		prompt.WriteString("</recent_conversation>\n\n")
	}

	prompt.WriteString("<user_message>\n")
	prompt.WriteString(req.Message)
	if req.HasImage() {
		prompt.WriteString("\n[the user attached a photo]")
	}
	prompt.WriteString("\n</user_message>\n\n")

	prompt.WriteString("<intents>\n")
	prompt.WriteString("- plant_identification: user wants to identify a plant\n")
	prompt.WriteString("- plant_care: watering, light, fertilizing, repotting, seasonal care\n")
	prompt.WriteString("- plant_health: diseases, pests, symptoms or other problems\n")
	prompt.WriteString("- general_question: other plant-related questions\n")
	prompt.WriteString("- casual_conversation: greetings, small talk, off-topic\n")
	prompt.WriteString("</intents>\n\n")

	prompt.WriteString("<tools>\n")
	for _, def := range a.registry.Definitions() {
		var params []string
		for name, p := range def.Parameters {
			flag := ""
			if p.Required {
				flag = ", required"
			}
			params = append(params, fmt.Sprintf("%s (%s%s)", name, p.Type, flag))
		}
		sort.Strings(params)
		prompt.WriteString(fmt.Sprintf("- %s: %s Params: %s\n", def.Name, def.Description, strings.Join(params, ", ")))
	}
	prompt.WriteString("Only request a tool when the message cannot be answered well without it.\n")
	prompt.WriteString("Never request diagnose_plant_health without a photo unless the user describes symptoms.\n")
	prompt.WriteString("</tools>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY a JSON object:\n")
	prompt.WriteString(`{"intent":"<one of the intents>","confidence":0.0,"species":["plants the user explicitly named"],`)
	prompt.WriteString(`"symptoms":[],"keywords":[],"tools":[{"name":"<tool>","params":{}}]}`)
	prompt.WriteString("\nLeave species empty unless a plant is named in the conversation.\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

// groundedSpecies keeps only species that actually appear in the conversation text.
func groundedSpecies(species []string, message string, history []*entity.ChatMessage) []string {
	var corpus strings.Builder
	corpus.WriteString(strings.ToLower(message))
	for _, m := range history {
		corpus.WriteString("\n")
		corpus.WriteString(strings.ToLower(m.Chat))
	}
	text := corpus.String()

	var out []string
	for _, s := range species {
		s = strings.TrimSpace(s)
		if s != "" && strings.Contains(text, strings.ToLower(s)) {
			out = append(out, s)
		}
	}
	return mergeUnique(nil, out)
}

func mergeUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	var out []string
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func callNames(calls []tool.Call) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
