// Package dispatch routes a tool name and its arguments to the matching
// retrieval handler and always returns a well-formed Response.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/tools"
)

// Status is the outcome class of a dispatched call.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNoData           Status = "no_data"
	StatusInsufficientData Status = "insufficient_data"
	StatusNoMatch          Status = "no_match"
	StatusError            Status = "error"
)

// ErrorBody is the structured error returned instead of a failure.
type ErrorBody struct {
	Kind    errs.Kind `json:"errorKind"`
	Message string    `json:"message"`
}

// Response is the only value that crosses the dispatcher boundary.
type Response struct {
	Tool    string     `json:"tool"`
	Status  Status     `json:"status"`
	Result  any        `json:"result,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Handlers is the retrieval layer as seen by the dispatcher.
type Handlers interface {
	Forecast(ctx context.Context, req tools.ForecastRequest) (*tools.Forecast, error)
	Recommend(ctx context.Context, req tools.RecommendRequest) (*tools.Recommendation, error)
	MarketTrend(ctx context.Context, req tools.MarketRequest) (*tools.MarketTrend, error)
	SearchSchemes(ctx context.Context, req tools.SchemeRequest) (*tools.SchemeResults, error)
}

// Param documents one tool argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description"`
}

// Tool describes a dispatchable tool.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

type runFunc func(ctx context.Context, h Handlers, a args) (Response, error)

type entry struct {
	tool Tool
	run  runFunc
}

// Dispatcher maps tool names to handlers. It is safe for concurrent use.
type Dispatcher struct {
	h     Handlers
	tools map[string]entry
	log   *logger.Logger
}

func New(h Handlers, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	d := &Dispatcher{h: h, tools: map[string]entry{}, log: log.With("component", "dispatch")}
	for _, e := range registry {
		d.tools[e.tool.Name] = e
	}
	return d
}

// Tools lists the registered tools sorted by name.
func (d *Dispatcher) Tools() []Tool {
	out := make([]Tool, 0, len(d.tools))
	for _, e := range d.tools {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch runs the named tool. Unknown tools, bad arguments, handler errors
// and panics all come back as a Response with StatusError.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, arguments map[string]any) (resp Response) {
	name = strings.TrimSpace(name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tool panicked", "tool", name, "panic", r, "stack", string(debug.Stack()))
			resp = errorResponse(name, errs.Errorf(errs.Internal, name, "handler panic: %v", r))
		}
		if resp.Status == StatusError {
			d.log.Warn("tool failed", "tool", name, "error_kind", resp.Error.Kind, "error", resp.Error.Message,
				"duration", time.Since(start))
			return
		}
		d.log.Info("tool dispatched", "tool", name, "status", resp.Status, "duration", time.Since(start))
	}()

	e, ok := d.tools[name]
	if !ok {
		return errorResponse(name, errs.Errorf(errs.UnknownTool, "dispatch", "unknown tool %q", name))
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	resp, err := e.run(ctx, d.h, args(arguments))
	if err != nil {
		switch errs.KindOf(err) {
		case errs.NoDataForLocation:
			return Response{Tool: name, Status: StatusNoData, Message: "No forecast available: " + cause(err)}
		case errs.InsufficientData:
			return Response{Tool: name, Status: StatusInsufficientData, Message: "Not enough price history: " + cause(err)}
		}
		return errorResponse(name, err)
	}
	resp.Tool = name
	if resp.Status == "" {
		resp.Status = StatusOK
	}
	return resp
}

func errorResponse(name string, err error) Response {
	return Response{
		Tool:   name,
		Status: StatusError,
		Error:  &ErrorBody{Kind: errs.KindOf(err), Message: err.Error()},
	}
}

// cause is the message of the innermost classified error without its op.
func cause(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

func success(result any) (Response, error) {
	return Response{Status: StatusOK, Result: result}, nil
}

func noMatch(result any, format string, a ...any) (Response, error) {
	return Response{Status: StatusNoMatch, Result: result, Message: fmt.Sprintf(format, a...)}, nil
}
