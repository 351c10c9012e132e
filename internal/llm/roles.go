package llm

import (
	"fmt"
	"sort"
)

// Strength categorizes the primary capability a role's model was picked for.
type Strength string

const (
	StrengthAnalytical Strength = "analytical"
	StrengthExecution  Strength = "execution"
	StrengthReasoning  Strength = "reasoning"
)

// RoleBinding binds a pipeline role to a provider, a physical model, and the
// sampling parameters the role always runs with.
type RoleBinding struct {
	Role             string
	DisplayName      string
	Strength         Strength
	Description      string
	Provider         string
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	ContextWindow    int
}

// Roles resolves pipeline roles to providers and bindings. It is populated
// once during initialization and read-only afterwards; Resolve never mutates.
type Roles struct {
	providers map[string]Provider
	bindings  map[string]RoleBinding
}

// NewRoles creates an empty role registry.
func NewRoles() *Roles {
	return &Roles{
		providers: make(map[string]Provider),
		bindings:  make(map[string]RoleBinding),
	}
}

// RegisterProvider adds a provider implementation.
func (r *Roles) RegisterProvider(name string, p Provider) {
	r.providers[name] = p
}

// Bind registers a role binding. The referenced provider must already be
// registered; a dangling binding would silently corrupt the pipeline, so it
// is rejected here instead of at call time.
func (r *Roles) Bind(role string, b RoleBinding) error {
	if _, ok := r.providers[b.Provider]; !ok {
		return fmt.Errorf("role %q references unregistered provider %q", role, b.Provider)
	}
	b.Role = role
	r.bindings[role] = b
	return nil
}

// Resolve returns the provider and binding for a role.
func (r *Roles) Resolve(role string) (Provider, RoleBinding, error) {
	b, ok := r.bindings[role]
	if !ok {
		return nil, RoleBinding{}, fmt.Errorf("role %q not bound", role)
	}
	p, ok := r.providers[b.Provider]
	if !ok {
		return nil, RoleBinding{}, fmt.Errorf("provider %q not registered for role %q", b.Provider, role)
	}
	return p, b, nil
}

// Request builds a ChatRequest carrying the binding's pinned parameters.
func (b RoleBinding) Request(messages []ChatMessage) ChatRequest {
	return ChatRequest{
		Model:            b.Model,
		Messages:         messages,
		MaxTokens:        b.MaxTokens,
		Temperature:      b.Temperature,
		TopP:             b.TopP,
		FrequencyPenalty: b.FrequencyPenalty,
		PresencePenalty:  b.PresencePenalty,
		ContextWindow:    b.ContextWindow,
	}
}

// Bindings returns all bindings sorted by role key.
func (r *Roles) Bindings() []RoleBinding {
	out := make([]RoleBinding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// Len reports the number of bound roles.
func (r *Roles) Len() int {
	return len(r.bindings)
}
