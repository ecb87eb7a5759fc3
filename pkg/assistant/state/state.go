// Package state defines the value threaded through one workflow run.
package state

import (
	"errors"
	"time"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/pkg/assistant/tool"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
)

const (
	IntentPlantIdentification = "plant_identification"
	IntentPlantCare           = "plant_care"
	IntentPlantHealth         = "plant_health"
	IntentGeneralQuestion     = "general_question"
	IntentCasualConversation  = "casual_conversation"
)

var Intents = []string{
	IntentPlantIdentification,
	IntentPlantCare,
	IntentPlantHealth,
	IntentGeneralQuestion,
	IntentCasualConversation,
}

func ValidIntent(intent string) bool {
	for _, i := range Intents {
		if i == intent {
			return true
		}
	}
	return false
}

// Node names of the workflow graph.
const (
	NodeAnalyze          = "analyze"
	NodeDispatchTools    = "dispatch_tools"
	NodeRetrieveContext  = "retrieve_context"
	NodeGenerateResponse = "generate_response"
	NodeUpdateMemory     = "update_memory"
)

type Request struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Message   string
	Image     string // base64, empty when no image was sent
	ImageURL  string
	Stream    bool
}

func (r Request) HasImage() bool {
	return r.Image != "" || r.ImageURL != ""
}

type Entities struct {
	Species  []string `json:"species"`
	Symptoms []string `json:"symptoms"`
}

type Analysis struct {
	Intent      string      `json:"intent"`
	Confidence  float64     `json:"confidence"`
	Entities    Entities    `json:"entities"`
	ToolsNeeded bool        `json:"tools_needed"`
	Tools       []tool.Call `json:"tools"`
	Keywords    []string    `json:"keywords"`
}

// ContextBundle is what the generator sees besides the message and tool results.
type ContextBundle struct {
	Window   []*entity.ChatMessage
	Memories []vectorstore.Match
	Profile  *entity.UserProfile
}

type Reply struct {
	Message        string
	Suggestions    []string
	RelatedActions []string
	Partial        bool
	Degraded       bool
}

// Persisted holds the ids assigned by the memory updater.
type Persisted struct {
	UserMessageID      uuid.UUID
	AssistantMessageID uuid.UUID
	Embedded           bool
}

// State is owned by exactly one in-flight turn and discarded when it finishes.
type State struct {
	Request     Request
	Analysis    *Analysis
	Invocations []tool.Invocation
	Context     ContextBundle
	Reply       Reply
	Persisted   *Persisted
	Failures    []error
	Visits      int
	StartedAt   time.Time
	Cancelled   bool
}

func New(req Request) *State {
	return &State{
		Request:   req,
		StartedAt: time.Now(),
	}
}

func (s *State) Fail(kind Kind, node string, err error) {
	s.Failures = append(s.Failures, NewNodeError(kind, node, err))
}

func (s *State) Failed(target error) bool {
	for _, f := range s.Failures {
		if errors.Is(f, target) {
			return true
		}
	}
	return false
}

// SucceededTools are the invocations that may reach the prompt and tools_used.
func (s *State) SucceededTools() []tool.Invocation {
	return tool.Succeeded(s.Invocations)
}

func (s *State) ToolsUsed() []string {
	return tool.Names(s.SucceededTools())
}

func (s *State) Intent() string {
	if s.Analysis == nil {
		return IntentGeneralQuestion
	}
	return s.Analysis.Intent
}

// Species returns the species the analyzer extracted or a successful diagnosis identified, in that order.
func (s *State) Species() []string {
	seen := map[string]bool{}
	var out []string
	add := func(sp string) {
		if sp != "" && !seen[sp] {
			seen[sp] = true
			out = append(out, sp)
		}
	}
	if s.Analysis != nil {
		for _, sp := range s.Analysis.Entities.Species {
			add(sp)
		}
	}
	for _, inv := range s.SucceededTools() {
		if d, ok := inv.Result.(tool.Diagnosis); ok {
			add(d.PlantIdentification.Species)
		}
	}
	return out
}

// Diagnosis returns the first successful diagnosis result, if any.
func (s *State) Diagnosis() (tool.Diagnosis, bool) {
	for _, inv := range s.SucceededTools() {
		if d, ok := inv.Result.(tool.Diagnosis); ok {
			return d, true
		}
	}
	return tool.Diagnosis{}, false
}
