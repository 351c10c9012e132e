package rpc

// SolveRequest is the top-level request for starting a solve run.
type SolveRequest struct {
	SessionID     string `json:"session_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Problem       string `json:"problem"`
}

// SolveEvent streams back progress from the daemon.
type SolveEvent struct {
	Type          string `json:"type"` // stage|plan|tool|report|answer|error|done
	SessionID     string `json:"session_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	Stage         string `json:"stage,omitempty"`
	Message       string `json:"message,omitempty"`
	ToolName      string `json:"tool_name,omitempty"`
	ToolInput     string `json:"tool_input,omitempty"`
	ToolOutput    string `json:"tool_output,omitempty"`
	ToolError     string `json:"tool_error,omitempty"`
	Error         string `json:"error,omitempty"`
	Done          bool   `json:"done,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`
	PlanFallback  bool   `json:"plan_fallback,omitempty"`
}

// SolveStreamRequest is the bidirectional stream payload for Connect RPC.
// The first message must carry the Solve request; later messages can carry
// control signals.
type SolveStreamRequest struct {
	Solve         *SolveRequest `json:"solve,omitempty"`
	Cancel        bool          `json:"cancel,omitempty"`
	SessionID     string        `json:"session_id,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
}
