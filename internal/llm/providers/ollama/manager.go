package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Manager answers liveness and catalog questions about a local Ollama service.
// All methods degrade to "unavailable" on network failure instead of erroring;
// callers decide whether unavailability is fatal.
type Manager struct {
	client  *http.Client
	baseURL string
}

// NewManager constructs a Manager with a bounded probe timeout.
func NewManager(baseURL string, probeTimeout time.Duration) *Manager {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Manager{
		client:  &http.Client{Timeout: probeTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewManagerWithClient constructs a Manager using the supplied HTTP client.
// Useful for tests and custom transports.
func NewManagerWithClient(baseURL string, client *http.Client) *Manager {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Manager{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Status reports whether the Ollama service answers the tags endpoint.
func (m *Manager) Status(ctx context.Context) bool {
	res, err := m.getTags(ctx)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK
}

// Models returns the names of locally installed models. Any failure yields an
// empty list.
func (m *Manager) Models(ctx context.Context) []string {
	res, err := m.getTags(ctx)
	if err != nil {
		return nil
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil
	}

	names := make([]string, 0, len(payload.Models))
	for _, mdl := range payload.Models {
		names = append(names, mdl.Name)
	}
	return names
}

// HasModel reports whether any installed model name contains the requested
// name as a substring. Containment rather than equality is intentional: a
// request for "gemma3" is satisfied by an installed "gemma3:1b", matching how
// ollama resolves untagged pulls.
func (m *Manager) HasModel(ctx context.Context, name string) bool {
	for _, installed := range m.Models(ctx) {
		if strings.Contains(installed, name) {
			return true
		}
	}
	return false
}

func (m *Manager) getTags(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	return m.client.Do(req)
}
