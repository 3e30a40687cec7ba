package nodered

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *FlowDocument {
	node := &Node{
		ID:    "wf1.n1",
		Type:  "http in",
		Z:     "flowdeck.1",
		Name:  "incoming",
		X:     100,
		Y:     40,
		Wires: [][]string{{"wf1.n2"}},
		Extra: map[string]any{"url": "/orders", "method": "post"},
	}

	return &FlowDocument{Flows: []*Node{NewTab("flowdeck.1", "demo"), node}}
}

func TestDeploy_SendsFullDeploymentRequest(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    []byte
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rev":"abc123"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token", slog.Default())

	rev, err := client.Deploy(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, "abc123", rev)

	assert.Equal(t, "/flows", gotPath)
	assert.Equal(t, "full", gotHeaders.Get("Node-RED-Deployment-Type"))
	assert.Equal(t, "v2", gotHeaders.Get("Node-RED-API-Version"))
	assert.Equal(t, "Bearer secret-token", gotHeaders.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))

	flows, ok := payload["flows"].([]any)
	require.True(t, ok)
	require.Len(t, flows, 2)

	// extra config fields are flattened into the node object
	node := flows[1].(map[string]any)
	assert.Equal(t, "/orders", node["url"])
	assert.Equal(t, "post", node["method"])
	assert.Equal(t, "http in", node["type"])
}

func TestDeploy_NoAuthHeaderWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"rev":"r"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", slog.Default())

	_, err := client.Deploy(context.Background(), sampleDocument())
	require.NoError(t, err)
}

func TestDeploy_RuntimeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "lost access to the flow store", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", slog.Default())

	_, err := client.Deploy(context.Background(), sampleDocument())
	require.Error(t, err)
	assert.True(t, IsRuntimeUnavailable(err))
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "lost access to the flow store")
}

func TestDeploy_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "", slog.Default())

	_, err := client.Deploy(context.Background(), sampleDocument())
	require.Error(t, err)
	assert.True(t, IsRuntimeUnavailable(err))
}

func TestDeploy_EmptyBodyStillSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", slog.Default())

	rev, err := client.Deploy(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.Empty(t, rev)
}

func TestNodeMarshal_TabOmitsCoordinates(t *testing.T) {
	tab := NewTab("flowdeck.9", "My Flow")

	body, err := json.Marshal(tab)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Equal(t, "tab", out["type"])
	assert.Equal(t, "My Flow", out["label"])
	assert.NotContains(t, out, "x")
	assert.NotContains(t, out, "y")
	assert.NotContains(t, out, "wires")
}
