package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trisolve/trisolve/internal/config"
	"github.com/trisolve/trisolve/internal/llm"
	"github.com/trisolve/trisolve/internal/llm/mock"
	"github.com/trisolve/trisolve/internal/search"
	"github.com/trisolve/trisolve/internal/tools"
)

type stubSearcher struct {
	queries []string
	results []search.Result
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

type stubFetcher struct {
	urls    []string
	content string
	err     error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.content, f.err
}

type recMetrics struct {
	runs          int
	planFallbacks int
	truncations   int
	toolCalls     map[string]int
}

func (m *recMetrics) RecordRun(outcome string, seconds float64) { m.runs++ }
func (m *recMetrics) RecordStage(stage string, seconds float64) {}
func (m *recMetrics) RecordModelUsage(role, model string)       {}
func (m *recMetrics) RecordModelFailure(role, model string)     {}
func (m *recMetrics) RecordPlanFallback()                       { m.planFallbacks++ }
func (m *recMetrics) RecordReportTruncation()                   { m.truncations++ }
func (m *recMetrics) RecordToolCall(name string, failed bool) {
	if m.toolCalls == nil {
		m.toolCalls = make(map[string]int)
	}
	m.toolCalls[name]++
}

func reply(content string) func(context.Context, llm.ChatRequest) (llm.ChatResponse, error) {
	return func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: content}}, nil
	}
}

type stagedProviders struct {
	analyst     *mock.Provider
	researcher  *mock.Provider
	synthesizer *mock.Provider
}

func newTestRoles(t *testing.T) (*llm.Roles, stagedProviders) {
	t.Helper()
	sp := stagedProviders{
		analyst:     &mock.Provider{NameValue: "analyst"},
		researcher:  &mock.Provider{NameValue: "researcher"},
		synthesizer: &mock.Provider{NameValue: "synthesizer"},
	}
	roles := llm.NewRoles()
	roles.RegisterProvider("analyst", sp.analyst)
	roles.RegisterProvider("researcher", sp.researcher)
	roles.RegisterProvider("synthesizer", sp.synthesizer)

	require.NoError(t, roles.Bind(config.RoleAnalyst, llm.RoleBinding{Provider: "analyst", Model: "qwen3:1.7b", Temperature: 0.3, MaxTokens: 4096, TopP: 0.9, ContextWindow: 32768}))
	require.NoError(t, roles.Bind(config.RoleResearcher, llm.RoleBinding{Provider: "researcher", Model: "deepseek-r1:8b", Temperature: 0.6, MaxTokens: 4096, TopP: 0.9, ContextWindow: 128000}))
	require.NoError(t, roles.Bind(config.RoleSynthesizer, llm.RoleBinding{Provider: "synthesizer", Model: "gemma3:1b", Temperature: 0.6, MaxTokens: 4096, TopP: 0.9, ContextWindow: 32768}))
	return roles, sp
}

func testCfg() config.PipelineConfig {
	return config.PipelineConfig{
		MaxReportBytes:  16384,
		MaxPlanQueries:  4,
		ScrapeMaxBytes:  32 * 1024,
		SearchMaxChecks: 3,
	}
}

func TestSolveSearchBranch(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("SEARCH\n1. current LTS kernel version\n2. kernel.org releases")
	sp.researcher.ChatFn = reply("The current LTS kernel is 6.12.")
	sp.synthesizer.ChatFn = reply("The current LTS kernel version is 6.12.")

	searcher := &stubSearcher{results: []search.Result{{Title: "kernel.org", URL: "https://kernel.org/", Snippet: "releases"}}}
	fetcher := &stubFetcher{content: "The latest longterm release is 6.12."}
	metrics := &recMetrics{}

	p := New(roles, tools.NewRegistry(searcher, fetcher), testCfg(), zap.NewNop(), metrics)

	var events []Event
	res, err := p.Solve(context.Background(), "What is the current LTS kernel version?", func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	require.Equal(t, PlanSearch, res.Plan.Kind)
	require.Equal(t, []string{"current LTS kernel version", "kernel.org releases"}, res.Plan.Queries)

	// First query hit, so the second was never searched.
	require.Equal(t, []string{"current LTS kernel version"}, searcher.queries)
	require.Equal(t, []string{"https://kernel.org/"}, fetcher.urls)
	require.Len(t, res.Tools, 2)
	require.Equal(t, tools.ToolWebSearch, res.Tools[0].Name)
	require.Equal(t, tools.ToolWebScrape, res.Tools[1].Name)
	require.Equal(t, 1, metrics.toolCalls[tools.ToolWebSearch])
	require.Equal(t, 1, metrics.toolCalls[tools.ToolWebScrape])

	// The researcher sees plan, query, URL and scraped text.
	require.Len(t, sp.researcher.Requests, 1)
	userMsg := sp.researcher.Requests[0].Messages[1].Content
	require.Contains(t, userMsg, "https://kernel.org/")
	require.Contains(t, userMsg, "The latest longterm release is 6.12.")

	require.Equal(t, "The current LTS kernel is 6.12.", res.Report)
	require.Equal(t, "The current LTS kernel version is 6.12.", res.Answer)

	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	require.Subset(t, types, []string{"plan", "tool", "report", "answer"})
}

func TestSolveReasonBranchUsesNoTools(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("REASON\n1. Add 2 and 2.\n2. Report the sum.")
	sp.researcher.ChatFn = reply("2 + 2 = 4. The sum is 4.")
	sp.synthesizer.ChatFn = reply("4")

	searcher := &stubSearcher{results: []search.Result{{URL: "https://example.com/"}}}
	fetcher := &stubFetcher{content: "never read"}

	p := New(roles, tools.NewRegistry(searcher, fetcher), testCfg(), zap.NewNop(), nil)
	res, err := p.Solve(context.Background(), "What is 2+2?", nil)
	require.NoError(t, err)

	require.Equal(t, PlanReason, res.Plan.Kind)
	require.Empty(t, searcher.queries)
	require.Empty(t, fetcher.urls)
	require.Empty(t, res.Tools)
	require.Equal(t, "4", res.Answer)
}

func TestSolveSynthesizerSeesReportOnly(t *testing.T) {
	roles, sp := newTestRoles(t)
	const problem = "Why is the sky blue during the day?"
	sp.analyst.ChatFn = reply("REASON\n1. Recall Rayleigh scattering.")
	sp.researcher.ChatFn = reply("Shorter wavelengths scatter more in the atmosphere.")
	sp.synthesizer.ChatFn = reply("Because shorter wavelengths scatter more.")

	p := New(roles, nil, testCfg(), zap.NewNop(), nil)
	_, err := p.Solve(context.Background(), problem, nil)
	require.NoError(t, err)

	require.Len(t, sp.synthesizer.Requests, 1)
	for _, msg := range sp.synthesizer.Requests[0].Messages {
		require.NotContains(t, msg.Content, problem)
		require.NotContains(t, msg.Content, "Rayleigh")
	}
	require.Contains(t, sp.synthesizer.Requests[0].Messages[1].Content, "Shorter wavelengths scatter more")
}

func TestSolveTwiceStartsFresh(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("REASON\n1. Compute.")
	sp.researcher.ChatFn = reply("The result is 4.")
	sp.synthesizer.ChatFn = reply("4")

	p := New(roles, nil, testCfg(), zap.NewNop(), nil)

	first, err := p.Solve(context.Background(), "What is 2+2?", nil)
	require.NoError(t, err)
	second, err := p.Solve(context.Background(), "What is 2+2?", nil)
	require.NoError(t, err)

	require.NotEqual(t, first.RunID, second.RunID)
	require.Equal(t, first.Answer, second.Answer)
	require.Empty(t, second.Tools)

	// One call per role per run, nothing carried over.
	require.Len(t, sp.analyst.Requests, 2)
	require.Len(t, sp.researcher.Requests, 2)
	require.Equal(t, sp.researcher.Requests[0].Messages, sp.researcher.Requests[1].Messages)
}

func TestSolveMalformedPlanFallsBack(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("Hmm, this one is tricky. Let me think about the approach.")
	sp.researcher.ChatFn = reply("Worked it out anyway.")
	sp.synthesizer.ChatFn = reply("Done.")

	searcher := &stubSearcher{}
	metrics := &recMetrics{}
	p := New(roles, tools.NewRegistry(searcher, &stubFetcher{}), testCfg(), zap.NewNop(), metrics)

	res, err := p.Solve(context.Background(), "An ambiguous problem", nil)
	require.NoError(t, err)
	require.True(t, res.PlanFallback)
	require.Equal(t, PlanReason, res.Plan.Kind)
	require.Empty(t, searcher.queries)
	require.Equal(t, 1, metrics.planFallbacks)

	// The raw analyst output still reaches the researcher as the outline.
	require.Contains(t, sp.researcher.Requests[0].Messages[1].Content, "tricky")
}

func TestSolveTruncatesOversizedReport(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("REASON\n1. Enumerate everything.")
	sp.researcher.ChatFn = reply(strings.Repeat("x", 500))
	sp.synthesizer.ChatFn = reply("short")

	cfg := testCfg()
	cfg.MaxReportBytes = 100
	metrics := &recMetrics{}
	p := New(roles, nil, cfg, zap.NewNop(), metrics)

	res, err := p.Solve(context.Background(), "List all primes below a million", nil)
	require.NoError(t, err)
	require.True(t, res.ReportTruncated)
	require.Len(t, res.Report, 100)
	require.Equal(t, 1, metrics.truncations)

	// Synthesis consumed the truncated report, not the original.
	require.NotContains(t, sp.synthesizer.Requests[0].Messages[1].Content, strings.Repeat("x", 101))
}

func TestSolveStripsReasoningFromStages(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("<think>search or reason?</think>\nREASON\n1. Just add.")
	sp.researcher.ChatFn = reply("<think>carry the one</think>\nThe sum is 4.")
	sp.synthesizer.ChatFn = reply("4")

	p := New(roles, nil, testCfg(), zap.NewNop(), nil)
	res, err := p.Solve(context.Background(), "What is 2+2?", nil)
	require.NoError(t, err)

	require.Equal(t, PlanReason, res.Plan.Kind)
	require.Equal(t, "The sum is 4.", res.Report)
	require.NotContains(t, sp.synthesizer.Requests[0].Messages[1].Content, "<think>")
}

func TestSolveSearchBranchBoundsAttempts(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("SEARCH\n1. q1\n2. q2\n3. q3\n4. q4")
	searcher := &stubSearcher{} // every query returns zero results

	cfg := testCfg()
	cfg.SearchMaxChecks = 2
	p := New(roles, tools.NewRegistry(searcher, &stubFetcher{}), cfg, zap.NewNop(), nil)

	_, err := p.Solve(context.Background(), "Something current", nil)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageResearch, stageErr.Stage)
	require.Len(t, searcher.queries, 2)
}

func TestSolveSearchFailuresFallThroughQueries(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("SEARCH\n1. q1\n2. q2")
	sp.researcher.ChatFn = reply("report")
	sp.synthesizer.ChatFn = reply("answer")

	calls := 0
	searcher := &flakySearcher{fn: func(query string) ([]search.Result, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("rate limited")
		}
		return []search.Result{{URL: "https://example.org/doc"}}, nil
	}}
	fetcher := &stubFetcher{content: "page text"}

	p := New(roles, tools.NewRegistry(searcher, fetcher), testCfg(), zap.NewNop(), nil)
	res, err := p.Solve(context.Background(), "Something current", nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, []string{"https://example.org/doc"}, fetcher.urls)

	// Both attempts traced, the failed one with its error.
	require.Len(t, res.Tools, 3)
	require.Equal(t, "rate limited", res.Tools[0].Error)
	require.Empty(t, res.Tools[1].Error)
}

type flakySearcher struct {
	fn func(query string) ([]search.Result, error)
}

func (s *flakySearcher) Search(ctx context.Context, query string) ([]search.Result, error) {
	return s.fn(query)
}

func TestSolveStageErrors(t *testing.T) {
	t.Run("analysis", func(t *testing.T) {
		roles, sp := newTestRoles(t)
		sp.analyst.ChatFn = func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, errors.New("connection refused")
		}
		p := New(roles, nil, testCfg(), zap.NewNop(), nil)
		_, err := p.Solve(context.Background(), "anything", nil)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		require.Equal(t, StageAnalysis, stageErr.Stage)
	})

	t.Run("synthesis keeps partial result", func(t *testing.T) {
		roles, sp := newTestRoles(t)
		sp.analyst.ChatFn = reply("REASON\n1. Think.")
		sp.researcher.ChatFn = reply("the report")
		sp.synthesizer.ChatFn = func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, errors.New("model unloaded")
		}
		p := New(roles, nil, testCfg(), zap.NewNop(), nil)
		res, err := p.Solve(context.Background(), "anything", nil)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		require.Equal(t, StageSynthesis, stageErr.Stage)
		require.Equal(t, "the report", res.Report)
		require.Empty(t, res.Answer)
	})

	t.Run("empty problem", func(t *testing.T) {
		roles, _ := newTestRoles(t)
		p := New(roles, nil, testCfg(), zap.NewNop(), nil)
		_, err := p.Solve(context.Background(), "   ", nil)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		require.Equal(t, StageAnalysis, stageErr.Stage)
	})
}

func TestSolvePinnedParamsReachProviders(t *testing.T) {
	roles, sp := newTestRoles(t)
	sp.analyst.ChatFn = reply("REASON\n1. Think.")
	sp.researcher.ChatFn = reply("report")
	sp.synthesizer.ChatFn = reply("answer")

	p := New(roles, nil, testCfg(), zap.NewNop(), nil)
	_, err := p.Solve(context.Background(), "anything", nil)
	require.NoError(t, err)

	req := sp.analyst.Requests[0]
	require.Equal(t, "qwen3:1.7b", req.Model)
	require.InDelta(t, 0.3, req.Temperature, 1e-9)
	require.Equal(t, 4096, req.MaxTokens)
	require.Equal(t, 32768, req.ContextWindow)

	req = sp.researcher.Requests[0]
	require.Equal(t, "deepseek-r1:8b", req.Model)
	require.Equal(t, 128000, req.ContextWindow)
}
