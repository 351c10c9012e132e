package ollama

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tagsClient(t *testing.T, body string) *http.Client {
	t.Helper()
	return &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/tags", r.URL.Path)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		}),
	}
}

func TestStatusFalseWhenUnreachable(t *testing.T) {
	t.Parallel()

	m := NewManager("http://mock", time.Second)
	m.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}

	require.False(t, m.Status(context.Background()))
}

func TestStatusTrueWhenHealthy(t *testing.T) {
	t.Parallel()

	m := NewManager("http://mock", time.Second)
	m.client = tagsClient(t, `{"models":[]}`)

	require.True(t, m.Status(context.Background()))
}

func TestModelsEmptyOnFailure(t *testing.T) {
	t.Parallel()

	m := NewManager("http://mock", time.Second)
	m.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}

	require.Empty(t, m.Models(context.Background()))
}

func TestHasModelSubstringContainment(t *testing.T) {
	t.Parallel()

	m := NewManager("http://mock", time.Second)
	m.client = tagsClient(t, `{"models":[{"name":"gemma3:1b"},{"name":"qwen3:1.7b"}]}`)

	require.True(t, m.HasModel(context.Background(), "gemma3"))
	require.True(t, m.HasModel(context.Background(), "gemma3:1b"))
	require.False(t, m.HasModel(context.Background(), "llama3"))
}

func TestHasModelEmptyCatalog(t *testing.T) {
	t.Parallel()

	m := NewManager("http://mock", time.Second)
	m.client = tagsClient(t, `{"models":[]}`)

	require.False(t, m.HasModel(context.Background(), "gemma3"))
}
