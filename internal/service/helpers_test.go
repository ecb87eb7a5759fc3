package service

import (
	"plant-assistant-be/pkg/assistant/memory"
	"plant-assistant-be/pkg/events"
)

func memoryReconcileEvent(turn *memory.Turn) events.Event {
	return events.NewReconcileRequired(memory.TurnPayload(turn))
}
