package configbuilder

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trisolve/trisolve/internal/config"
	llmollama "github.com/trisolve/trisolve/internal/llm/providers/ollama"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuildRolesBindsAllRoles(t *testing.T) {
	cfg := testConfig(t)

	roles, err := BuildRoles(cfg)
	require.NoError(t, err)
	require.Equal(t, len(config.RequiredRoles), roles.Len())

	_, binding, err := roles.Resolve(config.RoleAnalyst)
	require.NoError(t, err)
	require.Equal(t, "qwen3:1.7b", binding.Model)
	require.InDelta(t, 0.3, binding.Temperature, 0.001)
	require.Equal(t, 4096, binding.MaxTokens)
	require.InDelta(t, 0.9, binding.TopP, 0.001)
	require.Zero(t, binding.FrequencyPenalty)
	require.Zero(t, binding.PresencePenalty)
}

func TestBuildRolesRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Type = "carrier-pigeon"

	_, err := BuildRoles(cfg)
	require.Error(t, err)
}

func TestEnsureModelsFailsFastWithoutBindings(t *testing.T) {
	cfg := testConfig(t)

	mgr := llmollama.NewManagerWithClient("http://mock", &http.Client{
		Transport: emptyTagsTransport{},
	})
	prov := llmollama.NewProvisioner(mgr, time.Minute, nil)
	prov.SetPullFunc(func(ctx context.Context, model string) (string, error) {
		return "", errors.New("exit status 1")
	})

	err := EnsureModels(context.Background(), prov, cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "provision model")
}

func TestEnsureModelsSkipsInstalled(t *testing.T) {
	cfg := testConfig(t)

	mgr := llmollama.NewManagerWithClient("http://mock", &http.Client{
		Transport: allTagsTransport{},
	})
	prov := llmollama.NewProvisioner(mgr, time.Minute, nil)
	pulls := 0
	prov.SetPullFunc(func(ctx context.Context, model string) (string, error) {
		pulls++
		return "", nil
	})

	require.NoError(t, EnsureModels(context.Background(), prov, cfg))
	require.Zero(t, pulls)
}

type emptyTagsTransport struct{}

func (emptyTagsTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(`{"models":[]}`)),
	}, nil
}

type allTagsTransport struct{}

func (allTagsTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body: io.NopCloser(strings.NewReader(
			`{"models":[{"name":"qwen3:1.7b"},{"name":"deepseek-r1:8b"},{"name":"gemma3:1b"}]}`)),
	}, nil
}
