package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/torqueworks/torque/internal/buildinfo"
	"github.com/torqueworks/torque/internal/httpkit"
)

// HTTPBackend invokes tools against the data lookup service over HTTP.
// Each call is a POST to /v1/invoke; the service owns caching and
// reports hits back.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend for the service at baseURL.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		client: httpkit.NewClient(
			httpkit.WithTimeout(timeout),
			httpkit.WithUserAgent(buildinfo.UserAgent()),
		),
	}
}

type invokeRequest struct {
	Tool          string         `json:"tool"`
	Args          map[string]any `json:"args"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CacheScopeKey string         `json:"cache_scope_key,omitempty"`
}

type invokeResponse struct {
	Result   json.RawMessage `json:"result"`
	CacheHit bool            `json:"cache_hit"`
}

// Invoke implements [Backend].
func (b *HTTPBackend) Invoke(ctx context.Context, name string, args map[string]any, meta Meta) (any, bool, error) {
	body, err := json.Marshal(invokeRequest{
		Tool:          name,
		Args:          args,
		CorrelationID: meta.CorrelationID,
		CacheScopeKey: meta.CacheScopeKey,
	})
	if err != nil {
		return nil, false, fmt.Errorf("encode invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("invoke %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := httpkit.ReadErrorBody(resp.Body, 4096)
		return nil, false, fmt.Errorf("invoke %s: backend returned %d: %s", name, resp.StatusCode, detail)
	}

	var out invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decode invoke response: %w", err)
	}

	// Keep the payload opaque: the loop serializes it straight back to
	// the model.
	var result any
	if len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, &result); err != nil {
			return nil, false, fmt.Errorf("decode result payload: %w", err)
		}
	}
	return result, out.CacheHit, nil
}
