package generator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"plant-assistant-be/internal/constant"
	"plant-assistant-be/internal/entity"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/llm"
)

// BuildPrompt assembles persona, intent instructions, retrieved context, tool
// results and the user message, in that order.
func BuildPrompt(st *state.State) []llm.Message {
	messages := make([]llm.Message, 0, len(st.Context.Window)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt(st)})

	for _, m := range st.Context.Window {
		role := "user"
		if m.Role == constant.ChatMessageRoleAssistant {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Chat})
	}

	var user strings.Builder
	if block := memoryBlock(st); block != "" {
		user.WriteString(block)
	}
	if block := toolBlock(st); block != "" {
		user.WriteString(block)
	}
	user.WriteString("<user_message>\n")
	user.WriteString(st.Request.Message)
	user.WriteString("\n</user_message>")

	messages = append(messages, llm.Message{Role: "user", Content: user.String()})
	return messages
}

func systemPrompt(st *state.State) string {
	var sb strings.Builder

	intentPrompt, ok := intentPrompts[st.Intent()]
	if !ok {
		intentPrompt = intentPrompts[state.IntentGeneralQuestion]
	}
	sb.WriteString(intentPrompt)
	sb.WriteString("\n\n")

	if p := st.Context.Profile; p != nil {
		if g, ok := experienceGuidance[p.ExperienceLevel]; ok {
			sb.WriteString(g + "\n")
		}
		if g, ok := styleGuidance[p.CommunicationStyle]; ok {
			sb.WriteString(g + "\n")
		}
	}
	sb.WriteString("Reply in the same language the user writes in. Reply in plain text, not JSON.\n\n")

	sb.WriteString("<known_plants>\n")
	species := st.Species()
	if len(species) == 0 {
		sb.WriteString("none\n")
	} else {
		sb.WriteString(strings.Join(species, ", ") + "\n")
	}
	sb.WriteString("</known_plants>\n")
	sb.WriteString("Only name a plant species if it is listed in known_plants. If none is listed, do not guess one: ")
	sb.WriteString("describe likely causes in general terms and ask which plant it is.\n")

	if p := st.Context.Profile; p != nil {
		sb.WriteString("\n<user_profile>\n")
		if len(p.OwnedPlants) > 0 {
			sb.WriteString("Plants the user has mentioned owning: " + strings.Join(p.OwnedPlants, ", ") + "\n")
			sb.WriteString("Do not assume the current question is about one of them unless the user says so.\n")
		}
		if topics := topTopics(p.TopicCounts, 3); len(topics) > 0 {
			sb.WriteString("Frequent topics: " + strings.Join(topics, ", ") + "\n")
		}
		for _, t := range lastTreatments(p, 3) {
			sb.WriteString(fmt.Sprintf("Past treatment: %s (%s) -> %s\n", t.Species, t.Condition, t.Treatment))
		}
		sb.WriteString("</user_profile>\n")
	}

	return sb.String()
}

func memoryBlock(st *state.State) string {
	if len(st.Context.Memories) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<retrieved_context>\n")
	sb.WriteString("Earlier conversations with this user that may be relevant:\n")
	for _, m := range st.Context.Memories {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", m.Metadata.Timestamp.Format("2006-01-02"), m.Metadata.Content))
	}
	sb.WriteString("</retrieved_context>\n\n")
	return sb.String()
}

func toolBlock(st *state.State) string {
	succeeded := st.SucceededTools()
	if len(succeeded) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<tool_results>\n")
	for _, inv := range succeeded {
		payload, err := json.Marshal(inv.Result)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", inv.Name, payload))
	}
	sb.WriteString("</tool_results>\n\n")
	return sb.String()
}

func topTopics(counts map[string]int, n int) []string {
	topics := make([]string, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	return capList(topics, n)
}

func lastTreatments(p *entity.UserProfile, n int) []entity.TreatmentRecord {
	if len(p.TreatmentHistory) > n {
		return p.TreatmentHistory[len(p.TreatmentHistory)-n:]
	}
	return p.TreatmentHistory
}
