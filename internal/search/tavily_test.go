package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*TavilyClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cli, err := NewTavilyClient("test-key", 5, 16)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	cli.baseURL = srv.URL
	return cli, srv
}

func TestSearchParsesResults(t *testing.T) {
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req tavilyReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.APIKey != "test-key" {
			t.Errorf("missing api key in request")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "HPI Q2", "content": "prices fell 2%", "url": "https://example.com/hpi"},
			},
		})
	})

	results, err := cli.Search(context.Background(), []string{"knightsbridge hpi"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "HPI Q2" || results[0].Snippet != "prices fell 2%" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestSearchCachesPerQuery(t *testing.T) {
	calls := 0
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{{"title": "t", "content": "c", "url": "u"}},
		})
	})

	for i := 0; i < 3; i++ {
		if _, err := cli.Search(context.Background(), []string{"same query"}); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("got %d upstream calls, want 1 (cache miss only)", calls)
	}
}

func TestSearchSurfacesUpstreamFailure(t *testing.T) {
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	if _, err := cli.Search(context.Background(), []string{"q"}); err == nil {
		t.Fatal("expected an error from a 502 response")
	}
}

func TestSearchMergesQueries(t *testing.T) {
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req tavilyReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{{"title": req.Query, "content": "c", "url": "u"}},
		})
	})

	results, err := cli.Search(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 || results[0].Title != "first" || results[1].Title != "second" {
		t.Fatalf("unexpected merge order %+v", results)
	}
}
