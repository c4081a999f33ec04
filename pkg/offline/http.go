package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenSource supplies the bearer token for sync calls. A func type so a
// refreshing session can hand out the current token per request.
type TokenSource func() string

// HTTPBackend replays operations against the hosted sync endpoint.
type HTTPBackend struct {
	baseURL string // e.g. https://api.fasodevis.com
	token   TokenSource
	client  *http.Client
}

func NewHTTPBackend(baseURL string, token TokenSource) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type syncRequest struct {
	Operations []Operation `json:"operations"`
}

type syncResponse struct {
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
	Results []struct {
		Index    int    `json:"index"`
		OK       bool   `json:"ok"`
		EntityID string `json:"entity_id"`
		Error    string `json:"error"`
	} `json:"results"`
}

// Apply posts the batch to POST /api/sync and maps the per-operation
// verdicts back in order.
func (b *HTTPBackend) Apply(ctx context.Context, ops []Operation) ([]Result, error) {
	raw, err := json.Marshal(syncRequest{Operations: ops})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/sync", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != nil {
		req.Header.Set("Authorization", "Bearer "+b.token())
	}

	res, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("offline: sync endpoint returned %s | %s", res.Status, string(msg))
	}

	var out syncResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("offline: decode sync response: %w", err)
	}

	results := make([]Result, len(ops))
	for _, r := range out.Results {
		if r.Index < 0 || r.Index >= len(results) {
			return nil, fmt.Errorf("offline: result index %d out of range", r.Index)
		}
		results[r.Index] = Result{OK: r.OK, EntityID: r.EntityID, Error: r.Error}
	}
	return results, nil
}
