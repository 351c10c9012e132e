// Package fetch retrieves web pages as plain text for the researcher role.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultMaxBytes caps extracted page text. Raw pages must never reach a
// model prompt unbounded; the cap is mechanical, not advisory.
const DefaultMaxBytes = 32 * 1024

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher fetches a URL and returns its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher downloads pages over plain HTTP and strips markup.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int
}

// NewHTTP creates an HTTPFetcher. maxBytes <= 0 selects DefaultMaxBytes.
func NewHTTP(maxBytes int) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the URL content, strips HTML to plain text, and truncates
// to the configured cap.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return "", errors.New("fetch url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: http %d", trimmed, resp.StatusCode)
	}

	// Read at most maxBytes+1 of markup-stripped output worth of raw bytes.
	// Pages are read fully up to a generous multiple of the cap so stripping
	// has material to work with, then the text itself is capped.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxBytes)*8))
	if err != nil {
		return "", err
	}

	text := stripHTML(string(body))
	if len(text) > f.maxBytes {
		text = text[:f.maxBytes] + "\n[TRUNCATED]"
	}
	return text, nil
}

var (
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reChrome     = regexp.MustCompile(`(?is)<(nav|header|footer)[^>]*>.*?</(nav|header|footer)>`)
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reSpaces     = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// stripHTML removes scripts, styles and page chrome, then all tags, and
// normalizes whitespace.
func stripHTML(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reChrome.ReplaceAllString(s, "")
	s = reTags.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	s = reSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	s = strings.Join(out, "\n")
	return strings.TrimSpace(reBlankLines.ReplaceAllString(s, "\n\n"))
}
