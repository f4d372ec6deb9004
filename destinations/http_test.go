package destinations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicekit/sluice/core"
)

func TestHTTPIndexRejectsMalformedEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "not-a-url", "://missing-scheme"} {
		_, err := NewHTTPIndex(endpoint)
		assert.Error(t, err, endpoint)
	}
}

func TestHTTPIndexAcceptPostsDocument(t *testing.T) {
	var gotPath, gotAuth string
	var gotDoc map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotDoc))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	h, err := NewHTTPIndex(server.URL,
		WithHTTPIndexName("logs"),
		WithHTTPIndexAPIKey("secret"))
	require.NoError(t, err)
	defer h.Close()

	event := core.NewEvent(core.WarningLevel, "disk at {pct}%")
	event.RenderedMessage = "disk at 91%"
	event.Properties["pct"] = float64(91)
	require.NoError(t, h.Accept(event))

	assert.Equal(t, "/logs/_doc", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "Warning", gotDoc["level"])
	assert.Equal(t, "disk at 91%", gotDoc["message"])
	assert.Equal(t, "disk at {pct}%", gotDoc["template"])
	props, ok := gotDoc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(91), props["pct"])
}

func TestHTTPIndexAcceptBatchPostsBulkBody(t *testing.T) {
	var gotPath, gotContentType string
	var lines []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		lines = strings.Split(strings.TrimSpace(string(body)), "\n")
	}))
	defer server.Close()

	h, err := NewHTTPIndex(server.URL)
	require.NoError(t, err)
	defer h.Close()

	batch := make([]*core.Event, 3)
	for i := range batch {
		event := core.NewEvent(core.InformationLevel, "bulk")
		event.RenderedMessage = "bulk"
		batch[i] = event
	}
	require.NoError(t, h.AcceptBatch(batch))

	assert.Equal(t, "/events/_bulk", gotPath)
	assert.Equal(t, "application/x-ndjson", gotContentType)
	require.Len(t, lines, 3)
	for _, line := range lines {
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &doc))
		assert.Equal(t, "bulk", doc["message"])
	}
}

func TestHTTPIndexMapsStatusToErrorCode(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusRequestEntityTooLarge, core.ErrCodePayloadTooLarge},
		{http.StatusBadRequest, core.ErrCodeRejected},
		{http.StatusForbidden, core.ErrCodeRejected},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))

		h, err := NewHTTPIndex(server.URL)
		require.NoError(t, err)

		event := core.NewEvent(core.InformationLevel, "doc")
		err = h.Accept(event)
		require.Error(t, err)
		assert.Equal(t, tt.code, core.AsDeliveryError(err).Code, "status %d", tt.status)

		h.Close()
		server.Close()
	}
}

func TestHTTPIndexUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := server.URL
	server.Close()

	h, err := NewHTTPIndex(endpoint)
	require.NoError(t, err)
	defer h.Close()

	event := core.NewEvent(core.InformationLevel, "doc")
	err = h.Accept(event)
	require.Error(t, err)
	assert.Equal(t, core.ErrCodeUnreachable, core.AsDeliveryError(err).Code)
}

func TestHTTPIndexProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
	}))
	defer healthy.Close()

	h, err := NewHTTPIndex(healthy.URL)
	require.NoError(t, err)
	assert.NoError(t, h.Probe(context.Background()))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	h, err = NewHTTPIndex(broken.URL)
	require.NoError(t, err)
	assert.Error(t, h.Probe(context.Background()))
}

func TestHTTPIndexProbeHonorsContext(t *testing.T) {
	stall := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-stall
	}))
	defer server.Close()
	defer close(stall)

	h, err := NewHTTPIndex(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, h.Probe(ctx))
}
