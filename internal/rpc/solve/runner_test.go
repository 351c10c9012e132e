package solve

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trisolve/trisolve/internal/config"
	"github.com/trisolve/trisolve/internal/llm"
	"github.com/trisolve/trisolve/internal/llm/mock"
	"github.com/trisolve/trisolve/internal/pipeline"
	"github.com/trisolve/trisolve/internal/rpc"
)

func newRunnerFixture(t *testing.T, analyst, researcher, synthesizer *mock.Provider) *PipelineRunner {
	t.Helper()
	roles := llm.NewRoles()
	roles.RegisterProvider("analyst", analyst)
	roles.RegisterProvider("researcher", researcher)
	roles.RegisterProvider("synthesizer", synthesizer)
	require.NoError(t, roles.Bind(config.RoleAnalyst, llm.RoleBinding{Provider: "analyst", Model: "qwen3:1.7b"}))
	require.NoError(t, roles.Bind(config.RoleResearcher, llm.RoleBinding{Provider: "researcher", Model: "deepseek-r1:8b"}))
	require.NoError(t, roles.Bind(config.RoleSynthesizer, llm.RoleBinding{Provider: "synthesizer", Model: "gemma3:1b"}))

	p := pipeline.New(roles, nil, config.PipelineConfig{MaxReportBytes: 16384, MaxPlanQueries: 4}, zap.NewNop(), nil)
	return NewPipelineRunner(p, zap.NewNop())
}

func fixedReply(content string) *mock.Provider {
	return &mock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: content}}, nil
	}}
}

func collect(t *testing.T, ch <-chan rpc.SolveEvent) []rpc.SolveEvent {
	t.Helper()
	var out []rpc.SolveEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestPipelineRunnerStreamsRun(t *testing.T) {
	runner := newRunnerFixture(t,
		fixedReply("REASON\n1. Add the numbers."),
		fixedReply("2 + 2 = 4."),
		fixedReply("4"),
	)

	req := httptest.NewRequest("POST", "/solve", nil)
	events, err := runner.Run(req, rpc.SolveRequest{SessionID: "s1", CorrelationID: "c1", Problem: "What is 2+2?"})
	require.NoError(t, err)

	got := collect(t, events)
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	require.Equal(t, "done", last.Type)
	require.True(t, last.Done)
	require.NotEmpty(t, last.RunID)

	var answer string
	for _, ev := range got {
		require.Equal(t, "s1", ev.SessionID)
		require.Equal(t, "c1", ev.CorrelationID)
		if ev.Type == "answer" {
			answer = ev.Message
		}
	}
	require.Equal(t, "4", answer)
}

func TestPipelineRunnerReportsStageFailure(t *testing.T) {
	failing := &mock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{}, errors.New("backend unreachable")
	}}
	runner := newRunnerFixture(t, failing, fixedReply("unused"), fixedReply("unused"))

	req := httptest.NewRequest("POST", "/solve", nil)
	events, err := runner.Run(req, rpc.SolveRequest{SessionID: "s1", Problem: "anything"})
	require.NoError(t, err)

	got := collect(t, events)
	require.GreaterOrEqual(t, len(got), 2)

	var errEvent *rpc.SolveEvent
	for i := range got {
		if got[i].Type == "error" {
			errEvent = &got[i]
		}
	}
	require.NotNil(t, errEvent)
	require.Equal(t, "analysis", errEvent.Stage)
	require.Contains(t, errEvent.Error, "backend unreachable")
	require.Equal(t, "done", got[len(got)-1].Type)
}

func TestPipelineRunnerStopsOnCancel(t *testing.T) {
	blocked := make(chan struct{})
	analyst := &mock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		select {
		case <-ctx.Done():
			return llm.ChatResponse{}, ctx.Err()
		case <-blocked:
			return llm.ChatResponse{Message: llm.ChatMessage{Content: "REASON\n1. x"}}, nil
		}
	}}
	runner := newRunnerFixture(t, analyst, fixedReply("unused"), fixedReply("unused"))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/solve", nil).WithContext(ctx)
	events, err := runner.Run(req, rpc.SolveRequest{SessionID: "s1", Problem: "anything"})
	require.NoError(t, err)

	cancel()
	got := collect(t, events)
	// The channel must close; a cancelled run may or may not get its error
	// event out before the context dies.
	for _, ev := range got {
		require.NotEqual(t, "answer", ev.Type)
	}
	close(blocked)
}
