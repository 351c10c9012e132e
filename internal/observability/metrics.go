package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for the pipeline and the daemon
// transports. It satisfies the pipeline's Metrics interface.
type Metrics struct {
	registry      *prometheus.Registry
	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	StageDuration *prometheus.HistogramVec
	ModelUsage    *prometheus.CounterVec
	ModelFailures *prometheus.CounterVec
	ToolCalls     *prometheus.CounterVec
	PlanFallbacks prometheus.Counter
	ReportTruncs  prometheus.Counter
	ActiveSession *prometheus.GaugeVec
	TransportErrs *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with pipeline collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trisolve_runs_total",
		Help: "Completed solve runs by outcome",
	}, []string{"outcome"})

	runDurs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trisolve_run_duration_seconds",
		Help:    "Solve run duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	stageDurs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trisolve_stage_duration_seconds",
		Help:    "Model call duration per pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	modelUsage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trisolve_model_usage_total",
		Help: "Model calls by role",
	}, []string{"role", "model"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trisolve_model_failures_total",
		Help: "Model failures by role and model",
	}, []string{"role", "model"})

	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trisolve_tool_calls_total",
		Help: "Research tool invocations by tool and status",
	}, []string{"tool", "status"})

	planFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trisolve_plan_fallbacks_total",
		Help: "Malformed analyst plans recovered via the reason branch",
	})

	reportTruncs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trisolve_report_truncations_total",
		Help: "Research reports cut at the hand-off byte cap",
	})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trisolve_transport_active_sessions",
		Help: "Active streaming sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trisolve_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(runs, runDurs, stageDurs, modelUsage, modelFailures, toolCalls, planFallbacks, reportTruncs, active, trErrors)

	return &Metrics{
		registry:      reg,
		Runs:          runs,
		RunDuration:   runDurs,
		StageDuration: stageDurs,
		ModelUsage:    modelUsage,
		ModelFailures: modelFailures,
		ToolCalls:     toolCalls,
		PlanFallbacks: planFallbacks,
		ReportTruncs:  reportTruncs,
		ActiveSession: active,
		TransportErrs: trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records one completed solve run.
func (m *Metrics) RecordRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordStage records the duration of one model call within a stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordModelUsage increments the usage counter for a role/model pair.
func (m *Metrics) RecordModelUsage(role, model string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelUsage.WithLabelValues(role, model).Inc()
}

// RecordModelFailure increments the failure counter for a role/model pair.
func (m *Metrics) RecordModelFailure(role, model string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelFailures.WithLabelValues(role, model).Inc()
}

// RecordToolCall records one research tool invocation.
func (m *Metrics) RecordToolCall(name string, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.ToolCalls.WithLabelValues(name, status).Inc()
}

// RecordPlanFallback counts a malformed plan recovered by the reason branch.
func (m *Metrics) RecordPlanFallback() {
	if m == nil {
		return
	}
	m.PlanFallbacks.Inc()
}

// RecordReportTruncation counts a report cut at the hand-off byte cap.
func (m *Metrics) RecordReportTruncation() {
	if m == nil {
		return
	}
	m.ReportTruncs.Inc()
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}
