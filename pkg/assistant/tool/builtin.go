package tool

import (
	"context"
	"fmt"
	"strings"

	"plant-assistant-be/pkg/llm"
)

const (
	DiagnosePlantHealth = "diagnose_plant_health"
	GetCareGuide        = "get_care_guide"
	SavePreference      = "save_preference"
)

type PlantIdentification struct {
	PlantName  string  `json:"plant_name"`
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"`
}

type HealthAssessment struct {
	Condition string `json:"condition"`
	Diagnosis string `json:"diagnosis"`
	Severity  string `json:"severity"`
}

type Diagnosis struct {
	PlantIdentification      PlantIdentification `json:"plant_identification"`
	HealthAssessment         HealthAssessment    `json:"health_assessment"`
	IssuesFound              []string            `json:"issues_found"`
	TreatmentRecommendations []string            `json:"treatment_recommendations"`
	UserNotes                string              `json:"user_notes,omitempty"`
}

// Healthy reports whether the assessment found nothing to treat.
func (d Diagnosis) Healthy() bool {
	c := strings.ToLower(d.HealthAssessment.Condition)
	return c == "" || c == "healthy"
}

type CareGuide struct {
	Species  string `json:"species"`
	Watering string `json:"watering"`
	Light    string `json:"light"`
	Soil     string `json:"soil"`
	Humidity string `json:"humidity"`
	Notes    string `json:"notes"`
}

type Preference struct {
	ExperienceLevel    string `json:"experience_level,omitempty"`
	CommunicationStyle string `json:"communication_style,omitempty"`
	Plant              string `json:"plant,omitempty"`
}

// ReferenceSource supplies curated passages that ground the care guide.
type ReferenceSource interface {
	Passages(ctx context.Context, query string, topK int) ([]string, error)
}

const careGuideReferences = 3

// Builtins returns the stock plant tools backed by the given provider.
// refs may be nil, in which case the care guide relies on the model alone.
func Builtins(provider llm.LLMProvider, refs ReferenceSource) []Tool {
	return []Tool{
		&diagnoseTool{llm: provider},
		&careGuideTool{llm: provider, refs: refs},
		savePreferenceTool{},
	}
}

type diagnoseTool struct {
	llm llm.LLMProvider
}

func (t *diagnoseTool) Definition() Definition {
	return Definition{
		Name:        DiagnosePlantHealth,
		Description: "Analyze a plant photo (and optional notes) to identify the plant and diagnose diseases, pests or care problems.",
		Parameters: map[string]Parameter{
			"image_data": {Type: TypeString, Description: "Base64 encoded plant image"},
			"user_notes": {Type: TypeString, Rules: "max=2000", Description: "What the user observed"},
		},
	}
}

func (t *diagnoseTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	image, _ := params["image_data"].(string)
	notes, _ := params["user_notes"].(string)
	if image == "" && notes == "" {
		return nil, fmt.Errorf("%w: image_data or user_notes is required", ErrInvalidParams)
	}

	var prompt strings.Builder
	prompt.WriteString("You are a plant pathologist. Identify the plant and assess its health.\n")
	prompt.WriteString("Respond with ONLY a JSON object of this shape:\n")
	prompt.WriteString(`{"plant_identification":{"plant_name":"","species":"","confidence":0.0},`)
	prompt.WriteString(`"health_assessment":{"condition":"Healthy|<condition>","diagnosis":"2-3 sentences","severity":"None|Mild|Moderate|Severe"},`)
	prompt.WriteString(`"issues_found":[],"treatment_recommendations":[]}` + "\n")
	prompt.WriteString("Leave species empty and confidence 0 if you cannot identify the plant.\n")
	if notes != "" {
		prompt.WriteString("User notes: " + notes + "\n")
	}

	msg := llm.Message{Role: "user", Content: prompt.String()}
	if image != "" {
		msg.Images = []string{image}
	}

	response, err := t.llm.Chat(ctx, []llm.Message{msg}, llm.WithTemperature(0.2), llm.WithJSON())
	if err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}

	var d Diagnosis
	if err := llm.DecodeJSON(response, &d); err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}

	d.PlantIdentification.Confidence = clamp01(d.PlantIdentification.Confidence)
	if d.PlantIdentification.Species == "" {
		d.PlantIdentification.Confidence = 0
	}
	if d.Healthy() {
		d.IssuesFound = nil
		if d.HealthAssessment.Severity == "" {
			d.HealthAssessment.Severity = "None"
		}
	}
	d.UserNotes = notes
	return d, nil
}

type careGuideTool struct {
	llm  llm.LLMProvider
	refs ReferenceSource
}

func (t *careGuideTool) Definition() Definition {
	return Definition{
		Name:        GetCareGuide,
		Description: "Look up watering, light, soil and humidity needs for a named plant species.",
		Parameters: map[string]Parameter{
			"species": {Type: TypeString, Required: true, Rules: "min=2,max=120", Description: "Common or botanical name"},
		},
	}
}

func (t *careGuideTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	species := strings.TrimSpace(params["species"].(string))

	prompt := fmt.Sprintf(`Give concise care instructions for the plant "%s".
Respond with ONLY a JSON object: {"species":"","watering":"","light":"","soil":"","humidity":"","notes":""}`, species)
	if notes := t.references(ctx, species); len(notes) > 0 {
		prompt += "\nPrefer these reference notes where they apply:\n- " + strings.Join(notes, "\n- ")
	}

	response, err := t.llm.Generate(ctx, prompt, llm.WithTemperature(0.2), llm.WithJSON())
	if err != nil {
		return nil, fmt.Errorf("care guide: %w", err)
	}

	var g CareGuide
	if err := llm.DecodeJSON(response, &g); err != nil {
		return nil, fmt.Errorf("care guide: %w", err)
	}
	if g.Species == "" {
		g.Species = species
	}
	return g, nil
}

// references is best effort; a knowledge base outage only loses the grounding.
func (t *careGuideTool) references(ctx context.Context, species string) []string {
	if t.refs == nil {
		return nil
	}
	notes, err := t.refs.Passages(ctx, species+" care watering light soil", careGuideReferences)
	if err != nil {
		return nil
	}
	return notes
}

type savePreferenceTool struct{}

func (savePreferenceTool) Definition() Definition {
	return Definition{
		Name:        SavePreference,
		Description: "Remember the user's experience level, preferred answer style or a plant they own.",
		Parameters: map[string]Parameter{
			"experience_level":    {Type: TypeString, Rules: "oneof=beginner intermediate expert"},
			"communication_style": {Type: TypeString, Rules: "oneof=concise detailed friendly"},
			"plant":               {Type: TypeString, Rules: "max=120"},
		},
	}
}

// Invoke only echoes the validated payload; the memory updater persists it.
func (savePreferenceTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	p := Preference{}
	p.ExperienceLevel, _ = params["experience_level"].(string)
	p.CommunicationStyle, _ = params["communication_style"].(string)
	p.Plant, _ = params["plant"].(string)
	p.Plant = strings.TrimSpace(p.Plant)

	if p == (Preference{}) {
		return nil, fmt.Errorf("%w: nothing to save", ErrInvalidParams)
	}
	return p, nil
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
