// Package dispatch resolves command names to handlers and normalizes what
// they return into a Result.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs the named handler exactly once. It never panics: unknown
// commands and handler faults come back as failed results.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params Params) Result {
	h, ok := d.registry.Lookup(name)
	if !ok {
		res := FailedMessage("", fmt.Sprintf("Unknown Command: %s", name))
		res.Command = name
		res.AvailableCommands = d.registry.Names()
		d.logger.Warn("unknown command", "command", name)
		return res
	}
	if params == nil {
		params = Params{}
	}

	started := time.Now()
	res := d.invoke(ctx, h, name, params.Clone())
	res.Command = name
	d.logger.Debug("command dispatched",
		"command", name,
		"success", res.Success,
		"action", res.Action,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, name string, params Params) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			d.logger.Error("handler panic", "command", name, "panic", fmt.Sprint(r), "stack", string(stack[:n]))
			result = FailedMessage("", fmt.Sprintf("Execution error: %v", r))
		}
	}()
	return h.Execute(ctx, params).Normalize()
}
