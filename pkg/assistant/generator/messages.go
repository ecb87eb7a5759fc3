package generator

import "plant-assistant-be/pkg/assistant/state"

const (
	ApologyMessage = "I apologize, but I'm having trouble processing your request right now. Please try again."
	PhotoFollowUp  = "Consider uploading a photo for visual diagnosis"

	maxSuggestions    = 3
	maxRelatedActions = 3
)

var ApologySuggestions = []string{"Try rephrasing your question", "Contact support if the issue persists"}

var intentPrompts = map[string]string{
	state.IntentPlantIdentification: `You are an expert botanist specializing in plant identification.
Help users identify their plants using descriptions, photos, and characteristics.
Provide scientific names, common names, and care tips for identified plants.
Be conversational but accurate.`,

	state.IntentPlantCare: `You are a knowledgeable plant care specialist.
Provide practical, actionable advice for plant care including watering, lighting, fertilizing, repotting, and seasonal care.
Tailor advice to the user's specific plant and situation.
Be encouraging and supportive while being precise with care instructions.`,

	state.IntentPlantHealth: `You are a plant health expert and diagnostician.
Help users identify and treat plant health issues, diseases, pests, and environmental problems.
Provide step-by-step treatment plans and prevention strategies.
When uncertain, recommend consulting with local experts or uploading photos for visual diagnosis.`,

	state.IntentGeneralQuestion: `You are a friendly plant enthusiast and expert.
Answer plant-related questions with enthusiasm and knowledge.
Provide helpful information while encouraging the user's interest in plants.`,

	state.IntentCasualConversation: `You are a friendly plant assistant.
Engage naturally in conversation while gently steering towards plant-related topics.
Be warm, helpful, and encouraging about plant care and gardening.`,
}

var experienceGuidance = map[string]string{
	"beginner":     "The user is a beginner: explain simply, avoid jargon and give step-by-step instructions.",
	"intermediate": "The user has some experience: assume familiarity with basic care terms.",
	"expert":       "The user is an experienced grower: be technical, botanical names and precise figures are welcome.",
}

var styleGuidance = map[string]string{
	"concise":  "Keep the answer short, ideally under 120 words.",
	"detailed": "Give a thorough answer and explain the reasoning behind each recommendation.",
	"friendly": "Use a warm, encouraging and conversational tone.",
}

var defaultSuggestions = map[string][]string{
	state.IntentPlantIdentification: {
		"Describe the leaves and growth pattern",
		"Upload a photo if possible",
		"Tell me about the plant's size and location",
	},
	state.IntentPlantCare: {
		"What's your current care routine?",
		"Tell me about your plant's environment",
		"Any specific concerns about your plant?",
	},
	state.IntentPlantHealth: {
		"Describe the symptoms in detail",
		"When did you first notice the problem?",
		"Upload a photo for visual diagnosis",
	},
	state.IntentGeneralQuestion: {
		"Ask about specific plant care topics",
		"Get help identifying a plant",
		"Learn about plant health and problems",
	},
	state.IntentCasualConversation: {
		"Ask about plant care tips",
		"Get help with plant problems",
		"Learn about different plant species",
	},
}

var defaultActions = map[string][]string{
	state.IntentPlantIdentification: {"Upload plant photo", "Browse plant database", "Learn about plant species"},
	state.IntentPlantCare:           {"Set care reminders", "View care calendar", "Track plant progress"},
	state.IntentPlantHealth:         {"Schedule plant checkup", "Upload problem photo", "Find local plant experts"},
	state.IntentGeneralQuestion:     {"Explore plant care guides", "Browse plant species", "Set up plant tracking"},
	state.IntentCasualConversation:  {"Ask about plant care", "Explore plant identification", "Learn plant facts"},
}

// Suggestions returns follow-up prompts for the turn's intent. They are never species specific.
func Suggestions(st *state.State) []string {
	intent := st.Intent()
	base, ok := defaultSuggestions[intent]
	if !ok {
		return []string{"How can I help with your plants?"}
	}

	out := make([]string, 0, len(base)+1)
	if intent == state.IntentPlantHealth && !st.Request.HasImage() && len(st.Species()) == 0 {
		out = append(out, PhotoFollowUp)
	}
	out = append(out, base...)
	return capList(out, maxSuggestions)
}

func RelatedActions(st *state.State) []string {
	actions, ok := defaultActions[st.Intent()]
	if !ok {
		return []string{"Explore plant features"}
	}
	return capList(append([]string(nil), actions...), maxRelatedActions)
}

// Apology is the fixed degraded reply.
func Apology() state.Reply {
	return state.Reply{
		Message:     ApologyMessage,
		Suggestions: append([]string(nil), ApologySuggestions...),
		Degraded:    true,
	}
}

func capList(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
