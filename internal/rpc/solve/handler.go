package solve

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trisolve/trisolve/internal/observability"
	"github.com/trisolve/trisolve/internal/rpc"
)

// Handler processes Solve requests and streams NDJSON events.
type Handler struct {
	runner  Runner
	metrics *observability.Metrics
}

// NewHandler constructs a handler instance.
func NewHandler(runner Runner, metrics *observability.Metrics) *Handler {
	return &Handler{runner: runner, metrics: metrics}
}

// ServeHTTP handles POST /solve with an NDJSON stream of SolveEvent.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		if h.metrics != nil {
			h.metrics.RecordTransportError("ndjson", "method_not_allowed")
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.metrics != nil {
		h.metrics.IncActiveSessions("ndjson")
		defer h.metrics.DecActiveSessions("ndjson")
	}

	var req rpc.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("ndjson", "decode")
		}
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Problem == "" {
		if h.metrics != nil {
			h.metrics.RecordTransportError("ndjson", "empty_problem")
		}
		http.Error(w, "problem is required", http.StatusBadRequest)
		return
	}

	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	if req.CorrelationID == "" {
		req.CorrelationID = req.SessionID + "-corr"
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, err := h.runner.Run(r, req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("ndjson", "runner_error")
		}
		http.Error(w, fmt.Sprintf("runner error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	writer := bufio.NewWriter(w)
	for ev := range events {
		if err := json.NewEncoder(writer).Encode(ev); err != nil {
			break
		}
		writer.Flush()
		flusher.Flush()
	}
}
