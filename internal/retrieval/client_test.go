package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.DBName != "db_diseases" || req.Query != "headache" || req.TopK != 3 {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []Chunk{{Text: "chunk one"}, {Text: "chunk two"}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "db_diseases", 3)
	chunks, err := c.Search(context.Background(), "headache")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Text != "chunk one" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestSearchNon200IsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "db_diseases", 3)
	chunks, err := c.Search(context.Background(), "headache")
	if err != nil {
		t.Fatalf("expected degraded empty result, got error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %+v", chunks)
	}
}
