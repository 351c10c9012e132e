// Package solve exposes the pipeline over streaming transports: an NDJSON
// handler for plain HTTP clients and a Connect bidi stream for RPC clients.
package solve

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/trisolve/trisolve/internal/pipeline"
	"github.com/trisolve/trisolve/internal/rpc"
)

// Runner executes a solve request and yields streamed events.
type Runner interface {
	Run(r *http.Request, req rpc.SolveRequest) (<-chan rpc.SolveEvent, error)
}

// PipelineRunner adapts the pipeline to the Runner interface. One goroutine
// per run; the event channel closes when the run finishes or the request
// context is cancelled.
type PipelineRunner struct {
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
}

// NewPipelineRunner wraps a pipeline for streaming transports.
func NewPipelineRunner(p *pipeline.Pipeline, logger *zap.Logger) *PipelineRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineRunner{Pipeline: p, Logger: logger}
}

// Run starts a solve run and streams its progress. The returned channel is
// closed after the terminal done event.
func (pr *PipelineRunner) Run(r *http.Request, req rpc.SolveRequest) (<-chan rpc.SolveEvent, error) {
	out := make(chan rpc.SolveEvent, 16)
	ctx := r.Context()

	go func() {
		defer close(out)

		send := func(ev rpc.SolveEvent) {
			ev.SessionID = req.SessionID
			ev.CorrelationID = req.CorrelationID
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		res, err := pr.Pipeline.Solve(ctx, req.Problem, func(ev pipeline.Event) {
			send(translateEvent(ev))
		})
		if err != nil {
			stage := stageOf(err)
			pr.Logger.Warn("solve run failed",
				zap.String("session_id", req.SessionID),
				zap.String("stage", stage),
				zap.Error(err))
			send(rpc.SolveEvent{Type: "error", Stage: stage, Error: err.Error(), RunID: res.RunID})
			send(rpc.SolveEvent{Type: "done", Done: true, RunID: res.RunID})
			return
		}

		send(rpc.SolveEvent{
			Type:         "done",
			Done:         true,
			RunID:        res.RunID,
			Truncated:    res.ReportTruncated,
			PlanFallback: res.PlanFallback,
		})
	}()

	return out, nil
}

// translateEvent maps a pipeline event onto the wire shape.
func translateEvent(ev pipeline.Event) rpc.SolveEvent {
	out := rpc.SolveEvent{
		Type:    ev.Type,
		Stage:   ev.Stage,
		Message: ev.Message,
	}
	if ev.Tool != nil {
		out.ToolName = ev.Tool.Name
		out.ToolInput = ev.Tool.Input
		out.ToolOutput = ev.Tool.Output
		out.ToolError = ev.Tool.Error
	}
	return out
}

// stageOf extracts the failing stage from a pipeline error.
func stageOf(err error) string {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
