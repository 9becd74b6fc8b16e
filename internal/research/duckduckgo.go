package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"narrativ/internal/services"
)

const (
	defaultDuckDuckGoURL = "https://html.duckduckgo.com"
	maxDuckDuckGoBody    = 1 << 20
	duckDuckGoRedirect   = "//duckduckgo.com/l/?uddg="
)

// DuckDuckGoClient scrapes the DuckDuckGo HTML endpoint. It needs no key and
// serves as the research fallback when Tavily is not configured.
type DuckDuckGoClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDuckDuckGoClient returns a client for baseURL, defaulting to html.duckduckgo.com.
func NewDuckDuckGoClient(baseURL string, httpClient *http.Client) *DuckDuckGoClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: searchTimeout}
	}
	return &DuckDuckGoClient{baseURL: baseURL, httpClient: httpClient}
}

// Search runs a text query and returns up to maxResults hits.
func (c *DuckDuckGoClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 3
	}
	endpoint := c.baseURL + "/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: new request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "research", "duckduckgo search", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalTool, "research", "duckduckgo search",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDuckDuckGoBody))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "research", "duckduckgo search", "read response", err)
	}
	return parseDuckDuckGo(string(body), maxResults)
}

func parseDuckDuckGo(page string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "research", "duckduckgo search", "parse html", err)
	}
	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if hit := extractHit(n); hit.URL != "" && hit.Title != "" {
				results = append(results, hit)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return results, nil
}

func extractHit(n *html.Node) SearchResult {
	var hit SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				hit.URL = resolveRedirect(attr(n, "href"))
				hit.Title = textContent(n)
			case hasClass(n, "result__snippet"):
				hit.Content = textContent(n)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return hit
}

// resolveRedirect unwraps DuckDuckGo's click-tracking links.
func resolveRedirect(href string) string {
	rest, ok := strings.CutPrefix(href, duckDuckGoRedirect)
	if !ok {
		return href
	}
	target, _, _ := strings.Cut(rest, "&")
	decoded, err := url.QueryUnescape(target)
	if err != nil {
		return href
	}
	return decoded
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
