// Package search is the boundary to the external web-search collaborator.
// Search is an enrichment: callers degrade its failures to an empty result
// set instead of aborting a run.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"propsim/internal/types"
)

// Searcher executes a set of queries and returns the merged results.
type Searcher interface {
	Search(ctx context.Context, queries []string) ([]types.SearchResult, error)
}

// TavilyClient calls the Tavily search API. Identical queries within a
// process are served from an LRU cache.
type TavilyClient struct {
	http       *http.Client
	apiKey     string
	baseURL    string
	maxResults int
	cache      *lru.Cache[string, []types.SearchResult]
}

// NewTavilyClient creates a Tavily client. maxResults bounds results per
// query; cacheSize bounds the per-query result cache.
func NewTavilyClient(apiKey string, maxResults, cacheSize int) (*TavilyClient, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, []types.SearchResult](cacheSize)
	if err != nil {
		return nil, err
	}
	return &TavilyClient{
		http:       &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		baseURL:    "https://api.tavily.com/search",
		maxResults: maxResults,
		cache:      cache,
	}, nil
}

type tavilyReq struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResp struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Search runs every query in order and concatenates the results. A failure
// on any query fails the whole call; the caller decides how to degrade.
func (t *TavilyClient) Search(ctx context.Context, queries []string) ([]types.SearchResult, error) {
	var out []types.SearchResult
	for _, q := range queries {
		res, err := t.searchOne(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (t *TavilyClient) searchOne(ctx context.Context, query string) ([]types.SearchResult, error) {
	if cached, ok := t.cache.Get(query); ok {
		return cached, nil
	}

	b, _ := json.Marshal(tavilyReq{APIKey: t.apiKey, Query: query, MaxResults: t.maxResults})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		const max = 1024
		if len(payload) > max {
			payload = payload[:max]
		}
		return nil, fmt.Errorf("tavily: unexpected status %s: %s", resp.Status, string(payload))
	}

	var body tavilyResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	results := make([]types.SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, types.SearchResult{Title: r.Title, Snippet: r.Content, URL: r.URL})
	}
	t.cache.Add(query, results)
	return results, nil
}
