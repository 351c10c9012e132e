package pipeline

import (
	"errors"
	"regexp"
	"strings"
)

// PlanKind tags the analyst's decision.
type PlanKind string

const (
	// PlanSearch means the problem needs fresh information from the web.
	PlanSearch PlanKind = "SEARCH"
	// PlanReason means the problem is solvable from internal knowledge.
	PlanReason PlanKind = "REASON"
)

// ErrMalformedPlan reports analyst output whose first line is neither SEARCH
// nor REASON. The pipeline recovers by falling back to the REASON branch;
// the error exists so callers and telemetry can observe the contract breach.
var ErrMalformedPlan = errors.New("plan must start with SEARCH or REASON")

// Plan is the analyst's parsed output: either a set of search queries or a
// reasoning outline, never both.
type Plan struct {
	Kind    PlanKind `json:"kind"`
	Queries []string `json:"queries,omitempty"`
	Outline string   `json:"outline,omitempty"`
	Raw     string   `json:"raw"`
}

var reQueryLine = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*]\s+)(.+)$`)

// ParsePlan parses analyst output into a Plan. The first non-empty line must
// carry the decision token; for SEARCH plans the remaining numbered lines
// become queries (capped at maxQueries), for REASON plans they become the
// outline verbatim.
func ParsePlan(text string, maxQueries int) (Plan, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Plan{Raw: raw}, ErrMalformedPlan
	}

	lines := strings.Split(raw, "\n")
	head := strings.ToUpper(strings.Trim(strings.TrimSpace(lines[0]), " \t:*#."))
	rest := lines[1:]

	switch head {
	case string(PlanSearch):
		queries := parseQueries(rest, maxQueries)
		if len(queries) == 0 {
			return Plan{Raw: raw}, ErrMalformedPlan
		}
		return Plan{Kind: PlanSearch, Queries: queries, Raw: raw}, nil
	case string(PlanReason):
		return Plan{Kind: PlanReason, Outline: strings.TrimSpace(strings.Join(rest, "\n")), Raw: raw}, nil
	default:
		return Plan{Raw: raw}, ErrMalformedPlan
	}
}

// parseQueries extracts query strings from numbered or bulleted lines.
// Unnumbered non-empty lines count too; models are inconsistent about list
// markers.
func parseQueries(lines []string, max int) []string {
	if max <= 0 {
		max = 4
	}
	var queries []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := reQueryLine.FindStringSubmatch(trimmed); m != nil {
			trimmed = strings.TrimSpace(m[1])
		}
		if trimmed == "" {
			continue
		}
		queries = append(queries, trimmed)
		if len(queries) >= max {
			break
		}
	}
	return queries
}

var reThinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripReasoningTags drops <think> blocks that reasoning models such as
// deepseek-r1 and qwen3 prepend to their answers. Only the visible answer
// crosses stage boundaries.
func stripReasoningTags(text string) string {
	return strings.TrimSpace(reThinkBlock.ReplaceAllString(text, ""))
}
