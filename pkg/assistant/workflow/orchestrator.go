// Package workflow runs one chat turn through the assistant graph:
//
//	analyze -> [dispatch_tools] -> retrieve_context -> generate_response -> update_memory
//
// Node failures are recorded on the run's State and never abort it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plant-assistant-be/internal/entity"
	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/assistant/generator"
	"plant-assistant-be/pkg/assistant/state"
	"plant-assistant-be/pkg/assistant/tool"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxNodeVisits = 8
	DefaultDeadline      = 60 * time.Second
	DefaultMemoryTimeout = 15 * time.Second
)

type Analyzer interface {
	Analyze(ctx context.Context, req state.Request, history []*entity.ChatMessage) (*state.Analysis, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, calls []tool.Call) []tool.Invocation
}

type Retriever interface {
	Window(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, error)
	Retrieve(ctx context.Context, st *state.State)
}

type Generator interface {
	Generate(ctx context.Context, st *state.State) state.Reply
	Stream(ctx context.Context, st *state.State, emit generator.EmitFunc) state.Reply
}

type MemoryUpdater interface {
	Persist(ctx context.Context, st *state.State) error
}

type Config struct {
	MaxNodeVisits int
	Deadline      time.Duration
	MemoryTimeout time.Duration
}

type Orchestrator struct {
	analyzer   Analyzer
	dispatcher Dispatcher
	retriever  Retriever
	generator  Generator
	memory     MemoryUpdater
	cfg        Config
	tracer     trace.Tracer
	logger     logger.ILogger
	nodes      map[string]nodeFunc
}

// nodeFunc runs one node and names the next one.
type nodeFunc func(ctx context.Context, st *state.State, emit generator.EmitFunc) string

func New(
	analyzer Analyzer,
	dispatcher Dispatcher,
	retriever Retriever,
	generator Generator,
	memory MemoryUpdater,
	cfg Config,
	logger logger.ILogger,
) *Orchestrator {
	if cfg.MaxNodeVisits <= 0 {
		cfg.MaxNodeVisits = DefaultMaxNodeVisits
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.MemoryTimeout <= 0 {
		cfg.MemoryTimeout = DefaultMemoryTimeout
	}

	o := &Orchestrator{
		analyzer:   analyzer,
		dispatcher: dispatcher,
		retriever:  retriever,
		generator:  generator,
		memory:     memory,
		cfg:        cfg,
		tracer:     otel.Tracer("plant-assistant-be/workflow"),
		logger:     logger,
	}
	o.nodes = map[string]nodeFunc{
		state.NodeAnalyze:          o.analyze,
		state.NodeDispatchTools:    o.dispatchTools,
		state.NodeRetrieveContext:  o.retrieveContext,
		state.NodeGenerateResponse: o.generateResponse,
	}
	return o
}

// Run executes one turn and returns its finished State. The reply is always well formed.
func (o *Orchestrator) Run(ctx context.Context, req state.Request) *state.State {
	req.Stream = false
	return o.run(ctx, req, nil)
}

// RunStream is Run with the reply streamed through emit as it is generated.
// Cancelling ctx stops emission and persists whatever was produced, marked partial.
func (o *Orchestrator) RunStream(ctx context.Context, req state.Request, emit generator.EmitFunc) *state.State {
	req.Stream = true
	return o.run(ctx, req, emit)
}

func (o *Orchestrator) run(ctx context.Context, req state.Request, emit generator.EmitFunc) *state.State {
	st := state.New(req)

	ctx, span := o.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("session_id", req.SessionID.String()),
		attribute.Bool("stream", req.Stream),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	current := state.NodeAnalyze
	for current != state.NodeUpdateMemory {
		if ctx.Err() != nil {
			o.cancelled(st, current)
			break
		}
		if runCtx.Err() != nil {
			o.tripGuard(st, current, fmt.Errorf("deadline of %s exceeded", o.cfg.Deadline), emit)
			break
		}
		if st.Visits >= o.cfg.MaxNodeVisits {
			o.tripGuard(st, current, fmt.Errorf("%d node visits exhausted", o.cfg.MaxNodeVisits), emit)
			break
		}

		node, ok := o.nodes[current]
		if !ok {
			o.tripGuard(st, current, fmt.Errorf("unknown node %q", current), emit)
			break
		}
		st.Visits++
		current = o.exec(runCtx, current, node, st, emit)
	}

	o.settleReply(ctx, runCtx, st, emit)

	st.Visits++
	o.updateMemory(ctx, st)

	span.SetAttributes(
		attribute.String("intent", st.Intent()),
		attribute.Int("visits", st.Visits),
		attribute.Int("failures", len(st.Failures)),
		attribute.Bool("partial", st.Reply.Partial),
	)
	o.logger.Info("WORKFLOW", "Turn finished", map[string]interface{}{
		"session_id":  req.SessionID.String(),
		"intent":      st.Intent(),
		"tools_used":  st.ToolsUsed(),
		"visits":      st.Visits,
		"failures":    failureStrings(st.Failures),
		"partial":     st.Reply.Partial,
		"degraded":    st.Reply.Degraded,
		"duration_ms": time.Since(st.StartedAt).Milliseconds(),
	})
	return st
}

func (o *Orchestrator) exec(ctx context.Context, name string, node nodeFunc, st *state.State, emit generator.EmitFunc) string {
	ctx, span := o.tracer.Start(ctx, "workflow."+name)
	defer span.End()

	before := len(st.Failures)
	start := time.Now()
	next := node(ctx, st, emit)

	for _, f := range st.Failures[before:] {
		span.RecordError(f)
	}
	if len(st.Failures) > before {
		span.SetStatus(codes.Error, "degraded")
	}
	o.logger.Debug("WORKFLOW", "Node finished", map[string]interface{}{
		"node":       name,
		"next":       next,
		"latency_ms": time.Since(start).Milliseconds(),
		"failures":   len(st.Failures) - before,
	})
	return next
}

func (o *Orchestrator) analyze(ctx context.Context, st *state.State, _ generator.EmitFunc) string {
	// the window feeds the analyzer; retrieve_context reuses it
	window, err := o.retriever.Window(ctx, st.Request.SessionID)
	if err == nil {
		st.Context.Window = window
	}

	analysis, err := o.analyzer.Analyze(ctx, st.Request, window)
	if err != nil {
		st.Fail(state.KindAnalysis, state.NodeAnalyze, err)
	}
	if analysis == nil {
		analysis = &state.Analysis{Intent: state.IntentGeneralQuestion}
	}
	st.Analysis = analysis

	if analysis.ToolsNeeded && len(analysis.Tools) > 0 {
		return state.NodeDispatchTools
	}
	return state.NodeRetrieveContext
}

func (o *Orchestrator) dispatchTools(ctx context.Context, st *state.State, _ generator.EmitFunc) string {
	st.Invocations = o.dispatcher.Dispatch(ctx, st.Analysis.Tools)
	for _, inv := range st.Invocations {
		if inv.Failed() {
			st.Fail(state.KindTool, state.NodeDispatchTools, fmt.Errorf("%s: %w", inv.Name, inv.Err))
		}
	}
	return state.NodeRetrieveContext
}

func (o *Orchestrator) retrieveContext(ctx context.Context, st *state.State, _ generator.EmitFunc) string {
	o.retriever.Retrieve(ctx, st)
	return state.NodeGenerateResponse
}

func (o *Orchestrator) generateResponse(ctx context.Context, st *state.State, emit generator.EmitFunc) string {
	if st.Request.Stream && emit != nil {
		st.Reply = o.generator.Stream(ctx, st, emit)
	} else {
		st.Reply = o.generator.Generate(ctx, st)
	}
	return state.NodeUpdateMemory
}

// updateMemory is detached from the caller so a cancelled turn is still stored exactly once.
func (o *Orchestrator) updateMemory(ctx context.Context, st *state.State) {
	memCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.MemoryTimeout)
	defer cancel()

	memCtx, span := o.tracer.Start(memCtx, "workflow."+state.NodeUpdateMemory)
	defer span.End()

	if err := o.memory.Persist(memCtx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
	}
}

func (o *Orchestrator) cancelled(st *state.State, at string) {
	st.Cancelled = true
	st.Reply.Partial = true
	o.logger.Info("WORKFLOW", "Turn cancelled by caller", map[string]interface{}{
		"session_id": st.Request.SessionID.String(),
		"at_node":    at,
	})
}

func (o *Orchestrator) tripGuard(st *state.State, at string, cause error, emit generator.EmitFunc) {
	st.Fail(state.KindGuard, at, cause)
	o.logger.Warn("WORKFLOW", "Run guard tripped", map[string]interface{}{
		"session_id": st.Request.SessionID.String(),
		"at_node":    at,
		"error":      cause.Error(),
	})
	o.degrade(st, emit)
}

// degrade replaces an empty or missing reply with the apology and marks it partial.
func (o *Orchestrator) degrade(st *state.State, emit generator.EmitFunc) {
	if st.Reply.Message != "" {
		st.Reply.Partial = true
		st.Reply.Degraded = true
		return
	}
	st.Reply = state.Reply{
		Message:        generator.ApologyMessage,
		Suggestions:    generator.Suggestions(st),
		RelatedActions: generator.RelatedActions(st),
		Partial:        true,
		Degraded:       true,
	}
	if emit != nil {
		_ = emit(st.Reply.Message)
	}
}

// settleReply makes sure the caller gets a well formed reply whichever way the loop ended.
func (o *Orchestrator) settleReply(ctx, runCtx context.Context, st *state.State, emit generator.EmitFunc) {
	deadline := ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)

	switch {
	case st.Failed(state.ErrGuard):
		return

	case st.Cancelled && deadline:
		// generation itself ran into the deadline
		st.Cancelled = false
		o.tripGuard(st, state.NodeGenerateResponse, fmt.Errorf("deadline of %s exceeded", o.cfg.Deadline), emit)

	case st.Cancelled:
		st.Reply.Partial = true
		if len(st.Reply.Suggestions) == 0 {
			st.Reply.Suggestions = generator.Suggestions(st)
		}

	case st.Reply.Message == "":
		o.degrade(st, emit)
	}
}

func failureStrings(failures []error) []string {
	out := make([]string, len(failures))
	for i, f := range failures {
		out[i] = f.Error()
	}
	return out
}
