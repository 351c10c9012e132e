package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const ddgEndpoint = "https://lite.duckduckgo.com/lite/"

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ddgGate enforces 1 query per second across all DuckDuckGo instances.
var ddgGate struct {
	mu   sync.Mutex
	last time.Time
}

// DuckDuckGo scrapes DuckDuckGo's lite HTML interface. It needs no API key,
// which makes it the default provider.
type DuckDuckGo struct {
	maxResults int
	client     *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo searcher.
func NewDuckDuckGo(maxResults int) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &DuckDuckGo{
		maxResults: maxResults,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Search posts the query to the lite page and parses result anchors.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}

	ddgGate.mu.Lock()
	if wait := time.Until(ddgGate.last.Add(time.Second)); wait > 0 {
		ddgGate.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		ddgGate.mu.Lock()
	}
	ddgGate.last = time.Now()
	ddgGate.mu.Unlock()

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return d.parse(string(body)), nil
}

var (
	reResultLink    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	reResultLinkAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	reSnippet       = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>(.*?)</td>`)
	reAnyTag        = regexp.MustCompile(`<[^>]+>`)
)

// parse extracts up to maxResults links and snippets from the lite page HTML.
func (d *DuckDuckGo) parse(html string) []Result {
	matches := reResultLink.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = reResultLinkAlt.FindAllStringSubmatch(html, -1)
	}
	snippets := reSnippet.FindAllStringSubmatch(html, -1)

	var results []Result
	for i, m := range matches {
		if len(m) < 3 {
			continue
		}
		link := strings.TrimSpace(m[1])
		title := decodeEntities(strings.TrimSpace(m[2]))
		if link == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippets) && len(snippets[i]) > 1 {
			snippet = decodeEntities(strings.TrimSpace(reAnyTag.ReplaceAllString(snippets[i][1], " ")))
		}

		results = append(results, Result{Title: title, URL: link, Snippet: snippet})
		if len(results) >= d.maxResults {
			break
		}
	}
	return results
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
