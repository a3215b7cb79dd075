package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/logging"
)

const (
	searchUserAgent   = "flowrun/1.0"
	maxPageBytes      = 2 << 20
	maxPageContent    = 4000
	quickSearchLimit  = 5
	deepSearchFetches = 3
)

// Search queries an HTML search endpoint (DuckDuckGo's HTML frontend layout)
// and optionally fetches the top pages as markdown.
type Search struct {
	name       string
	endpoint   string
	fetchPages int
	hc         *http.Client
	converter  *md.Converter
}

func NewSearch(name, endpoint string, fetchPages int, hc *http.Client) *Search {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Search{
		name:       name,
		endpoint:   endpoint,
		fetchPages: fetchPages,
		hc:         hc,
		converter:  md.NewConverter("", true, nil),
	}
}

func (w *Search) Name() string { return w.name }

func (w *Search) Invoke(ctx context.Context, req action.Request) (any, error) {
	params, ok := req.Params.(action.SearchParams)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot %s", ErrUnsupportedAction, w.name, req.Action)
	}
	if params.Query == "" {
		params.Query = req.Input.Query()
	}
	limit := params.MaxResults
	fetches := w.fetchPages
	switch params.Depth {
	case action.DepthQuick:
		limit = min(limit, quickSearchLimit)
		fetches = 0
	case action.DepthDeep:
		fetches = max(fetches, deepSearchFetches)
	}

	results, err := w.search(ctx, params.Query, params.TimeFilter, limit)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(results) && i < fetches; i++ {
		u := results[i]["url"].(string)
		action.Think(ctx, "fetch", fmt.Sprintf("Reading %s", u))
		content, err := w.fetch(ctx, u)
		if err != nil {
			logging.Debug("Failed to fetch search result", "url", u, "error", err)
			continue
		}
		results[i][action.OutputContent] = content
	}

	items := make([]any, 0, len(results))
	sources := make([]any, 0, len(results))
	for _, r := range results {
		items = append(items, r)
		sources = append(sources, map[string]any{"title": r["title"], "url": r["url"]})
	}
	return map[string]any{
		"query":              params.Query,
		action.OutputResults: items,
		action.OutputSources: sources,
	}, nil
}

var timeFilters = map[string]string{"day": "d", "week": "w", "month": "m", "year": "y"}

func (w *Search) search(ctx context.Context, query, timeFilter string, limit int) ([]map[string]any, error) {
	values := url.Values{}
	values.Set("q", query)
	if df, ok := timeFilters[timeFilter]; ok {
		values.Set("df", df)
	}
	target := w.endpoint
	if strings.Contains(target, "?") {
		target += "&" + values.Encode()
	} else {
		target += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	var results []map[string]any
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		link := s.Find(".result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		results = append(results, map[string]any{
			"title":   strings.TrimSpace(link.Text()),
			"url":     resolveResultURL(href),
			"snippet": strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return true
	})
	return results, nil
}

// resolveResultURL unwraps redirect links of the form //host/l/?uddg=<target>.
func resolveResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func (w *Search) fetch(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch url: %s (%s)", uri, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	markdown, err := w.converter.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("converting page to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if len(markdown) > maxPageContent {
		markdown = markdown[:maxPageContent]
	}
	return markdown, nil
}
