package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plant-assistant-be/internal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxParallel = 4
)

type Dispatcher struct {
	registry    *Registry
	timeout     time.Duration
	maxParallel int
	logger      logger.ILogger
}

func NewDispatcher(registry *Registry, timeout time.Duration, maxParallel int, logger logger.ILogger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &Dispatcher{
		registry:    registry,
		timeout:     timeout,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

type workItem struct {
	idx  int
	tool Tool
	call Call
}

// Dispatch runs the calls with at most maxParallel in flight and joins once every call has
// settled, which is never later than the timeout. Results keep the order of calls.
// A failing call never affects its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []Call) []Invocation {
	results := make([]Invocation, len(calls))
	work := make([]workItem, 0, len(calls))

	for i, call := range calls {
		results[i] = Invocation{Name: call.Name, Params: call.Params}
		t, err := d.registry.Validate(call)
		if err != nil {
			results[i].Err = err
			d.logger.Warn("TOOL", "Rejected tool call", map[string]interface{}{
				"tool":  call.Name,
				"error": err.Error(),
			})
			continue
		}
		work = append(work, workItem{idx: i, tool: t, call: call})
	}

	if len(work) == 0 {
		return results
	}

	// One deadline for the whole fan-out: a call still queued when it passes is
	// reported as timed out without being invoked.
	dctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(d.maxParallel)
	for _, w := range work {
		g.Go(func() error {
			if dctx.Err() != nil {
				results[w.idx] = d.expired(ctx, w.call, 0)
				return nil
			}
			results[w.idx] = d.invoke(ctx, dctx, w.tool, w.call)
			return nil
		})
	}
	_ = g.Wait()

	for _, inv := range results {
		details := map[string]interface{}{
			"tool":       inv.Name,
			"latency_ms": inv.Latency.Milliseconds(),
			"timed_out":  inv.TimedOut,
		}
		if inv.Err != nil {
			details["error"] = inv.Err.Error()
			d.logger.Warn("TOOL", "Tool failed", details)
		} else {
			d.logger.Debug("TOOL", "Tool succeeded", details)
		}
	}
	return results
}

type outcome struct {
	result any
	err    error
}

// invoke runs one tool until the dispatch deadline. A tool that ignores its context
// is abandoned when the deadline fires; its late result is dropped.
func (d *Dispatcher) invoke(ctx, dctx context.Context, t Tool, call Call) Invocation {
	inv := Invocation{Name: call.Name, Params: call.Params}
	start := time.Now()

	done := make(chan outcome, 1)
	go func() {
		done <- safeInvoke(dctx, t, call)
	}()

	select {
	case out := <-done:
		inv.Result, inv.Err = out.result, out.err
	case <-dctx.Done():
		return d.expired(ctx, call, time.Since(start))
	}
	inv.Latency = time.Since(start)

	if inv.Err != nil && errors.Is(inv.Err, context.DeadlineExceeded) && ctx.Err() == nil {
		inv.TimedOut = true
		inv.Err = fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
	}
	return inv
}

// expired reports a call cut off by the dispatch deadline or by the caller's cancellation.
func (d *Dispatcher) expired(ctx context.Context, call Call, latency time.Duration) Invocation {
	inv := Invocation{Name: call.Name, Params: call.Params, Latency: latency}
	if err := ctx.Err(); err != nil {
		inv.Err = err
		return inv
	}
	inv.TimedOut = true
	inv.Err = fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
	return inv
}

func safeInvoke(ctx context.Context, t Tool, call Call) (out outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = outcome{err: fmt.Errorf("tool %q panic: %v", call.Name, p)}
		}
	}()
	res, err := t.Invoke(ctx, call.Params)
	return outcome{result: res, err: err}
}
