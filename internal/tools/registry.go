// Package tools exposes the researcher's external capabilities as a named
// tool registry with JSON-schema descriptors.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trisolve/trisolve/internal/fetch"
	"github.com/trisolve/trisolve/internal/search"
)

// Tool names available to the research stage.
const (
	ToolWebSearch = "web.search"
	ToolWebScrape = "web.scrape"
)

// Registry holds the web capabilities available to the pipeline.
type Registry struct {
	Searcher search.Searcher
	Fetcher  fetch.Fetcher
}

// NewRegistry builds a registry over concrete search/scrape implementations.
func NewRegistry(searcher search.Searcher, fetcher fetch.Fetcher) *Registry {
	return &Registry{Searcher: searcher, Fetcher: fetcher}
}

// Search runs a web search and returns ranked results.
func (r *Registry) Search(ctx context.Context, query string) ([]search.Result, error) {
	if r == nil || r.Searcher == nil {
		return nil, fmt.Errorf("search capability unavailable")
	}
	return r.Searcher.Search(ctx, query)
}

// Scrape fetches a URL and returns its readable text.
func (r *Registry) Scrape(ctx context.Context, url string) (string, error) {
	if r == nil || r.Fetcher == nil {
		return "", fmt.Errorf("scrape capability unavailable")
	}
	return r.Fetcher.Fetch(ctx, url)
}

// Execute runs a named tool with loosely-typed args. This is the surface the
// RPC layer exposes; the pipeline itself uses the typed methods above.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	if err := ValidateCall(r, name, args); err != nil {
		return "", err
	}

	switch name {
	case ToolWebSearch:
		query, _ := args["query"].(string)
		results, err := r.Search(ctx, query)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("encode results: %w", err)
		}
		return string(data), nil
	case ToolWebScrape:
		url, _ := args["url"].(string)
		return r.Scrape(ctx, url)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}
