// Package pipeline implements the three-stage solve pipeline: an analyst
// plans, a researcher gathers, a synthesizer answers. Stages run strictly in
// sequence and each run starts from fresh state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trisolve/trisolve/internal/config"
	"github.com/trisolve/trisolve/internal/llm"
	"github.com/trisolve/trisolve/internal/tools"
)

// Pipeline drives solve runs over the read-only role registry. It is safe to
// reuse across runs; all per-run state lives in the run struct created by
// Solve.
type Pipeline struct {
	roles   *llm.Roles
	tools   *tools.Registry
	cfg     config.PipelineConfig
	logger  *zap.Logger
	metrics Metrics
	gate    *callGate
}

// New builds a Pipeline. tools may be nil when no search provider is
// configured; SEARCH plans then fail at the research stage.
func New(roles *llm.Roles, reg *tools.Registry, cfg config.PipelineConfig, logger *zap.Logger, metrics Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		roles:   roles,
		tools:   reg,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		gate:    newCallGate(cfg.CallInterval),
	}
}

// run carries the state of a single invocation. A fresh instance per Solve
// call is the mechanism that guarantees no cross-run leakage.
type run struct {
	id     string
	result Result
	emit   EventFunc
}

func (r *run) event(ev Event) {
	if r.emit != nil {
		r.emit(ev)
	}
}

// Solve executes the full pipeline for one problem. emit may be nil. On
// failure the returned error is always a *StageError identifying the broken
// stage; the partial Result carries whatever stages completed.
func (p *Pipeline) Solve(ctx context.Context, problem string, emit EventFunc) (Result, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return Result{}, &StageError{Stage: StageAnalysis, Err: errors.New("problem is empty")}
	}

	r := &run{id: uuid.NewString(), emit: emit}
	r.result.RunID = r.id
	r.result.Problem = problem

	start := time.Now()
	logger := p.logger.With(zap.String("run_id", r.id))
	logger.Info("starting solve run", zap.String("problem", problem))

	err := p.execute(ctx, r, problem, logger)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordRun(outcome, time.Since(start).Seconds())
	}
	if err != nil {
		logger.Warn("solve run failed", zap.Error(err))
		return r.result, err
	}

	logger.Info("solve run complete", zap.Duration("took", time.Since(start)))
	return r.result, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run, problem string, logger *zap.Logger) error {
	// Stage 1: analysis. The analyst only plans.
	r.event(Event{Type: "stage", Stage: StageAnalysis})
	planText, err := p.chat(ctx, StageAnalysis, config.RoleAnalyst, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: buildAnalystSystemPrompt()},
		{Role: llm.RoleUser, Content: buildAnalystUserPrompt(problem)},
	})
	if err != nil {
		return &StageError{Stage: StageAnalysis, Err: err}
	}

	plan, perr := ParsePlan(planText, p.cfg.MaxPlanQueries)
	if perr != nil {
		// Contract breach, not a fatal condition: treat the raw text as a
		// reasoning outline and keep going.
		logger.Warn("malformed plan, falling back to reason branch", zap.String("head", firstLine(planText)))
		if p.metrics != nil {
			p.metrics.RecordPlanFallback()
		}
		plan = Plan{Kind: PlanReason, Outline: planText, Raw: planText}
		r.result.PlanFallback = true
	}
	r.result.Plan = plan
	r.event(Event{Type: "plan", Stage: StageAnalysis, Message: plan.Raw})

	// Stage 2: research. Branch on the parsed plan kind.
	r.event(Event{Type: "stage", Stage: StageResearch})
	var report string
	switch plan.Kind {
	case PlanSearch:
		report, err = p.researchSearch(ctx, r, plan, logger)
	default:
		report, err = p.researchReason(ctx, plan)
	}
	if err != nil {
		return &StageError{Stage: StageResearch, Err: err}
	}

	if len(report) > p.cfg.MaxReportBytes {
		// Mechanical cap on the hand-off, independent of the researcher's
		// compliance with the compression instructions.
		report = report[:p.cfg.MaxReportBytes]
		r.result.ReportTruncated = true
		if p.metrics != nil {
			p.metrics.RecordReportTruncation()
		}
		logger.Warn("research report truncated", zap.Int("cap_bytes", p.cfg.MaxReportBytes))
	}
	r.result.Report = report
	r.event(Event{Type: "report", Stage: StageResearch, Message: report})

	// Stage 3: synthesis. Receives the report only; neither the problem nor
	// the plan reaches this stage.
	r.event(Event{Type: "stage", Stage: StageSynthesis})
	answer, err := p.chat(ctx, StageSynthesis, config.RoleSynthesizer, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: buildSynthesizerSystemPrompt()},
		{Role: llm.RoleUser, Content: buildSynthesizerUserPrompt(report)},
	})
	if err != nil {
		return &StageError{Stage: StageSynthesis, Err: err}
	}
	r.result.Answer = answer
	r.event(Event{Type: "answer", Stage: StageSynthesis, Message: answer})

	return nil
}

// researchSearch executes the tool-using branch: search each planned query
// until one yields results, scrape the top hit, then have the researcher
// compress the scraped content.
func (p *Pipeline) researchSearch(ctx context.Context, r *run, plan Plan, logger *zap.Logger) (string, error) {
	if p.tools == nil {
		return "", errors.New("plan requires search but no tools are configured")
	}

	queries := plan.Queries
	if p.cfg.SearchMaxChecks > 0 && len(queries) > p.cfg.SearchMaxChecks {
		queries = queries[:p.cfg.SearchMaxChecks]
	}

	var (
		hitURL   string
		hitQuery string
	)
	for _, query := range queries {
		results, err := p.tools.Search(ctx, query)
		trace := ToolTrace{Name: tools.ToolWebSearch, Input: query}
		if err != nil {
			trace.Error = err.Error()
		} else {
			trace.Output = fmt.Sprintf("%d results", len(results))
		}
		r.result.Tools = append(r.result.Tools, trace)
		r.event(Event{Type: "tool", Stage: StageResearch, Tool: &trace})
		if p.metrics != nil {
			p.metrics.RecordToolCall(tools.ToolWebSearch, err != nil)
		}
		if err != nil {
			logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			continue
		}
		if len(results) > 0 {
			hitURL = results[0].URL
			hitQuery = query
			break
		}
	}
	if hitURL == "" {
		return "", errors.New("no search query produced results")
	}

	scraped, err := p.tools.Scrape(ctx, hitURL)
	trace := ToolTrace{Name: tools.ToolWebScrape, Input: hitURL}
	if err != nil {
		trace.Error = err.Error()
	} else {
		trace.Output = fmt.Sprintf("%d bytes", len(scraped))
	}
	r.result.Tools = append(r.result.Tools, trace)
	r.event(Event{Type: "tool", Stage: StageResearch, Tool: &trace})
	if p.metrics != nil {
		p.metrics.RecordToolCall(tools.ToolWebScrape, err != nil)
	}
	if err != nil {
		return "", fmt.Errorf("scrape %s: %w", hitURL, err)
	}

	if len(scraped) > p.cfg.ScrapeMaxBytes {
		scraped = scraped[:p.cfg.ScrapeMaxBytes]
	}

	return p.chat(ctx, StageResearch, config.RoleResearcher, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: buildResearcherSystemPrompt()},
		{Role: llm.RoleUser, Content: buildCompressUserPrompt(plan, hitQuery, hitURL, scraped)},
	})
}

// researchReason executes the no-tools branch from internal knowledge.
func (p *Pipeline) researchReason(ctx context.Context, plan Plan) (string, error) {
	return p.chat(ctx, StageResearch, config.RoleResearcher, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: buildResearcherSystemPrompt()},
		{Role: llm.RoleUser, Content: buildReasonUserPrompt(plan)},
	})
}

// chat resolves the role, paces the call through the gate, and returns the
// model's visible output with reasoning tags stripped.
func (p *Pipeline) chat(ctx context.Context, stage, role string, messages []llm.ChatMessage) (string, error) {
	provider, binding, err := p.roles.Resolve(role)
	if err != nil {
		return "", err
	}

	if err := p.gate.wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := provider.Chat(ctx, binding.Request(messages))
	if p.metrics != nil {
		p.metrics.RecordStage(stage, time.Since(start).Seconds())
		if err != nil {
			p.metrics.RecordModelFailure(role, binding.Model)
		} else {
			p.metrics.RecordModelUsage(role, binding.Model)
		}
	}
	if err != nil {
		return "", fmt.Errorf("role %s (%s): %w", role, binding.Model, err)
	}

	return stripReasoningTags(resp.Message.Content), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
