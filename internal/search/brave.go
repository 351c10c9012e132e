package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search API. Requests sharing a client are paced to
// the API's 1 req/s limit through an internal gate.
type Brave struct {
	apiKey     string
	maxResults int
	client     *http.Client

	mu      sync.Mutex
	readyAt time.Time
}

// NewBrave constructs a Brave search provider.
func NewBrave(apiKey string, maxResults int) *Brave {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Brave{
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Search executes one Brave query, retrying on 429 with the delay the API
// advertises.
func (b *Brave) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("brave: query is empty")
	}

	endpoint := braveEndpoint + "?q=" + url.QueryEscape(query)

	var resp *http.Response
	for {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.apiKey)

		resp, err = b.client.Do(req)
		if err != nil {
			b.hold(time.Second)
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			b.hold(time.Second)
			break
		}
		wait := resetDelay(resp.Header)
		resp.Body.Close()
		b.hold(wait)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	results := make([]Result, 0, b.maxResults)
	for _, r := range payload.Web.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
		if len(results) >= b.maxResults {
			break
		}
	}
	return results, nil
}

// wait blocks until the pacing gate allows the next request.
func (b *Brave) wait(ctx context.Context) error {
	b.mu.Lock()
	wait := time.Until(b.readyAt)
	b.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// hold sets the minimum delay before the next request may fire.
func (b *Brave) hold(d time.Duration) {
	b.mu.Lock()
	b.readyAt = time.Now().Add(d)
	b.mu.Unlock()
}

// resetDelay reads X-RateLimit-Reset ("1, 1419704": per-second, per-month)
// and returns the smallest positive reset as a wait duration.
func resetDelay(h http.Header) time.Duration {
	raw := h.Get("X-RateLimit-Reset")
	min := -1
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			continue
		}
		if min < 0 || n < min {
			min = n
		}
	}
	if min <= 0 {
		return time.Second
	}
	return time.Duration(min) * time.Second
}
