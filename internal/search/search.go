// Package search provides web-search providers for the researcher role.
package search

import "context"

// Result is one ranked search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher returns ranked results for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}
