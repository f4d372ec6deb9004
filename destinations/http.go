package destinations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sluicekit/sluice/core"
)

// HTTPIndex delivers events to a remote search/indexing endpoint as JSON
// documents: one document per Accept, a newline-delimited bulk body per
// AcceptBatch. Use it behind a buffered sink so producers never wait on
// the round-trip.
type HTTPIndex struct {
	endpoint string
	index    string
	apiKey   string
	client   *http.Client
}

// HTTPIndexOption configures an HTTP index destination.
type HTTPIndexOption func(*HTTPIndex)

// WithHTTPIndexAPIKey attaches an opaque bearer credential.
func WithHTTPIndexAPIKey(apiKey string) HTTPIndexOption {
	return func(h *HTTPIndex) {
		h.apiKey = apiKey
	}
}

// WithHTTPIndexClient replaces the HTTP client.
func WithHTTPIndexClient(client *http.Client) HTTPIndexOption {
	return func(h *HTTPIndex) {
		h.client = client
	}
}

// WithHTTPIndexName sets the index name. Default "events".
func WithHTTPIndexName(index string) HTTPIndexOption {
	return func(h *HTTPIndex) {
		h.index = index
	}
}

// NewHTTPIndex creates a destination for the given endpoint URL. The
// endpoint is validated here; connectivity is checked by Probe.
func NewHTTPIndex(endpoint string, opts ...HTTPIndexOption) (*HTTPIndex, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid index endpoint %q", endpoint)
	}

	h := &HTTPIndex{
		endpoint: strings.TrimRight(endpoint, "/"),
		index:    "events",
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// document is the wire shape for one event.
type document struct {
	Timestamp  time.Time      `json:"@timestamp"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Template   string         `json:"template"`
	Exception  string         `json:"exception,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func toDocument(event *core.Event) document {
	doc := document{
		Timestamp:  event.Timestamp,
		Level:      event.Level.String(),
		Message:    event.RenderedMessage,
		Template:   event.MessageTemplate,
		Properties: event.Properties,
	}
	if event.Exception != nil {
		doc.Exception = event.Exception.Error()
	}
	return doc
}

// Accept posts one document.
func (h *HTTPIndex) Accept(event *core.Event) error {
	body, err := json.Marshal(toDocument(event))
	if err != nil {
		return core.NewDeliveryError(core.ErrCodeRejected, "encode document: %v", err)
	}
	return h.post(h.endpoint+"/"+h.index+"/_doc", "application/json", body)
}

// AcceptBatch posts a newline-delimited bulk body.
func (h *HTTPIndex) AcceptBatch(events []*core.Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, event := range events {
		if err := enc.Encode(toDocument(event)); err != nil {
			return core.NewDeliveryError(core.ErrCodeRejected, "encode bulk body: %v", err)
		}
	}
	return h.post(h.endpoint+"/"+h.index+"/_bulk", "application/x-ndjson", buf.Bytes())
}

func (h *HTTPIndex) post(target, contentType string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return core.NewDeliveryError(core.ErrCodeRejected, "build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return core.NewDeliveryError(core.ErrCodeUnreachable, "post %s: %v", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	code := core.ErrCodeRejected
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		code = core.ErrCodePayloadTooLarge
	}
	return core.NewDeliveryError(code, "index returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
}

// Probe checks connectivity with a bounded GET against the endpoint root.
func (h *HTTPIndex) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return err
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", h.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: status %d", h.endpoint, resp.StatusCode)
	}
	return nil
}

// Flush is a no-op: the destination holds no state between calls.
func (h *HTTPIndex) Flush(ctx context.Context) core.FlushResult {
	return core.FlushOK
}

// Close releases idle connections.
func (h *HTTPIndex) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
