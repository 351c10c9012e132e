package pipeline

import "fmt"

// Stage names used in errors, events and metrics.
const (
	StageAnalysis  = "analysis"
	StageResearch  = "research"
	StageSynthesis = "synthesis"
)

// StageError wraps a failure with the pipeline stage that produced it, so
// callers can branch on where a run broke instead of inspecting strings.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ToolTrace records one tool invocation made during the research stage.
type ToolTrace struct {
	Name   string `json:"name"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of one pipeline run. Every field is populated from
// this run only; nothing survives across invocations.
type Result struct {
	RunID           string      `json:"run_id"`
	Problem         string      `json:"problem"`
	Plan            Plan        `json:"plan"`
	PlanFallback    bool        `json:"plan_fallback,omitempty"` // malformed plan recovered via REASON branch
	Report          string      `json:"report"`
	ReportTruncated bool        `json:"report_truncated,omitempty"`
	Answer          string      `json:"answer"`
	Tools           []ToolTrace `json:"tools,omitempty"`
}

// Event is emitted as the pipeline progresses through a run.
type Event struct {
	Type    string // stage|plan|tool|report|answer
	Stage   string
	Message string
	Tool    *ToolTrace
}

// EventFunc receives progress events. Implementations must not block for
// long; the pipeline calls them synchronously between stages.
type EventFunc func(Event)

// Metrics is the subset of telemetry the pipeline records. A nil Metrics is
// valid and records nothing.
type Metrics interface {
	RecordRun(outcome string, seconds float64)
	RecordStage(stage string, seconds float64)
	RecordModelUsage(role, model string)
	RecordModelFailure(role, model string)
	RecordToolCall(name string, failed bool)
	RecordPlanFallback()
	RecordReportTruncation()
}
