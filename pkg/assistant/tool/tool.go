// Package tool holds the typed tool registry and the bounded concurrent dispatcher.
package tool

import (
	"context"
	"errors"
	"time"
)

// Parameter types a definition may declare.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrInvalidParams = errors.New("invalid tool parameters")
	ErrTimeout       = errors.New("tool timed out")
)

type Parameter struct {
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Rules       string `json:"rules,omitempty"` // validator tag, e.g. "max=4000"
	Description string `json:"description"`
}

type Definition struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]Parameter `json:"parameters"`
}

// Tool is a named capability. Invoke only ever sees params that passed Registry.Validate.
type Tool interface {
	Definition() Definition
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// Call is a tool request produced by the analyzer.
type Call struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Invocation records one call within a turn. It is never persisted.
type Invocation struct {
	Name     string         `json:"name"`
	Params   map[string]any `json:"params"`
	Result   any            `json:"result,omitempty"`
	Err      error          `json:"-"`
	Latency  time.Duration  `json:"latency"`
	TimedOut bool           `json:"timed_out"`
}

func (i Invocation) Failed() bool {
	return i.Err != nil || i.TimedOut
}

// Succeeded drops failed and timed-out invocations, keeping order.
func Succeeded(invocations []Invocation) []Invocation {
	out := make([]Invocation, 0, len(invocations))
	for _, inv := range invocations {
		if !inv.Failed() {
			out = append(out, inv)
		}
	}
	return out
}

func Names(invocations []Invocation) []string {
	names := make([]string, len(invocations))
	for i, inv := range invocations {
		names[i] = inv.Name
	}
	return names
}
