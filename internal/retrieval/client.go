// Package retrieval calls the FAISS search service for knowledge-base
// snippets. A failed search degrades to an empty result, never an error on
// the question path.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

type Chunk struct {
	Text string `json:"text"`
}

type Client struct {
	url    string
	dbName string
	topK   int
	http   *http.Client
}

func New(url, dbName string, topK int) *Client {
	return &Client{url: url, dbName: dbName, topK: topK, http: &http.Client{}}
}

type searchRequest struct {
	DBName string `json:"db_name"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k"`
}

type searchResponse struct {
	Results []Chunk `json:"results"`
}

// Search returns up to topK relevant chunks. Non-200 responses are logged
// and surfaced as an empty result.
func (c *Client) Search(ctx context.Context, query string) ([]Chunk, error) {
	body, err := json.Marshal(searchRequest{DBName: c.dbName, Query: query, TopK: c.topK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		log.Error().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("faiss service search failed")
		return nil, nil
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return out.Results, nil
}
