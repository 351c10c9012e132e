package configbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/trisolve/trisolve/internal/config"
	"github.com/trisolve/trisolve/internal/llm"
	llmollama "github.com/trisolve/trisolve/internal/llm/providers/ollama"
	llmopenai "github.com/trisolve/trisolve/internal/llm/providers/openai"
)

// Sampling parameters pinned for every role connection. The per-role knobs
// (temperature, context window) come from config; these do not vary.
const (
	maxOutputTokens  = 4096
	topP             = 0.9
	frequencyPenalty = 0.0
	presencePenalty  = 0.0
)

// backendProviderName keys the single backend provider in the role registry.
const backendProviderName = "backend"

// EnsureModels provisions every configured role model, failing fast on the
// first one that cannot be made available. It must be called before
// BuildRoles so that no role binding exists when provisioning fails.
func EnsureModels(ctx context.Context, prov *llmollama.Provisioner, cfg *config.Config) error {
	for _, key := range config.RequiredRoles {
		role := cfg.Roles[key]
		if err := prov.Ensure(ctx, role.Model); err != nil {
			return fmt.Errorf("provision model for role %s: %w", key, err)
		}
	}
	return nil
}

// BuildRoles constructs the role registry from config. Connection setup
// failures are returned immediately; the caller aborts initialization.
func BuildRoles(cfg *config.Config) (*llm.Roles, error) {
	roles := llm.NewRoles()

	provider, err := buildProvider(cfg.Backend)
	if err != nil {
		return nil, err
	}
	roles.RegisterProvider(backendProviderName, provider)

	for _, key := range config.RequiredRoles {
		rc := cfg.Roles[key]
		binding := llm.RoleBinding{
			DisplayName:      rc.Name,
			Strength:         llm.Strength(strings.ToLower(strings.TrimSpace(rc.Strength))),
			Description:      rc.Description,
			Provider:         backendProviderName,
			Model:            rc.Model,
			Temperature:      rc.Temperature,
			MaxTokens:        maxOutputTokens,
			TopP:             topP,
			FrequencyPenalty: frequencyPenalty,
			PresencePenalty:  presencePenalty,
			ContextWindow:    rc.ContextWindow,
		}
		if err := roles.Bind(key, binding); err != nil {
			return nil, fmt.Errorf("bind role %s: %w", key, err)
		}
	}

	return roles, nil
}

func buildProvider(cfg config.BackendConfig) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "ollama":
		return llmollama.NewProvider(backendProviderName, cfg.BaseURL, cfg.ChatTimeout), nil
	case "openai":
		return llmopenai.NewProvider(backendProviderName, cfg.BaseURL, cfg.APIKey, cfg.ChatTimeout), nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}
