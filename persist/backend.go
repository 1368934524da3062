package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mindflow-ai/mindgraph/graph"
)

// Sentinel errors for backend operations.
var (
	// ErrBackendUnavailable indicates the backend could not be reached or
	// answered with a server error.
	ErrBackendUnavailable = errors.New("persist: backend unavailable")

	// ErrBackendRejected indicates the backend understood the request and
	// refused it (a 4xx answer). Retrying the same payload will not help.
	ErrBackendRejected = errors.New("persist: backend rejected request")
)

// Backend is the durable store collaborator. The node-write endpoint is
// treated as an idempotent upsert-by-id; cascading deletes are issued one
// request per affected id because the backend is not assumed to cascade.
type Backend interface {
	// SaveNode upserts one node record.
	SaveNode(ctx context.Context, node *graph.Node) error

	// DeleteNode deletes one node by id.
	DeleteNode(ctx context.Context, id string) error

	// LoadNodes bulk-loads all node records of the graph. The answer is
	// the source-of-truth replacement on initial load.
	LoadNodes(ctx context.Context) ([]*graph.Node, error)
}

// HTTPBackendOptions configures the REST backend client.
type HTTPBackendOptions struct {
	// BaseURL is the API root, e.g. "https://api.example.com/api".
	BaseURL string

	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration

	// Client overrides the HTTP client, e.g. for tests or custom TLS.
	Client *http.Client
}

// HTTPBackend implements Backend against the REST collaborator:
//
//	POST   {base}/mindmap       -- upsert one node (full record as JSON body)
//	GET    {base}/mindmap       -- bulk-load: {"nodes": [...]}
//	DELETE {base}/mindmap/{id}  -- delete one node
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend client for the given API root.
func NewHTTPBackend(opts HTTPBackendOptions) (*HTTPBackend, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("persist: backend base URL cannot be empty")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("persist: invalid base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPBackend{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
	}, nil
}

// SaveNode upserts one node record.
func (b *HTTPBackend) SaveNode(ctx context.Context, node *graph.Node) error {
	body, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("persist: marshal node %q: %w", node.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/mindmap", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("persist: build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return b.do(req, nil)
}

// DeleteNode deletes one node by id.
func (b *HTTPBackend) DeleteNode(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		b.baseURL+"/mindmap/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("persist: build delete request: %w", err)
	}
	return b.do(req, nil)
}

// LoadNodes bulk-loads all node records.
func (b *HTTPBackend) LoadNodes(ctx context.Context) ([]*graph.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/mindmap", nil)
	if err != nil {
		return nil, fmt.Errorf("persist: build load request: %w", err)
	}

	var payload struct {
		Nodes []*graph.Node `json:"nodes"`
	}
	if err := b.do(req, &payload); err != nil {
		return nil, err
	}
	return payload.Nodes, nil
}

// do executes the request and decodes a JSON answer into out when out is
// non-nil.
func (b *HTTPBackend) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrBackendRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("persist: decode response: %w", err)
		}
	}
	return nil
}
