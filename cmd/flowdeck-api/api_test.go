package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/nodered"
	"github.com/flowdeck/flowdeck/pkg/persistence/file"
)

type noopFlowWriter struct{}

func (noopFlowWriter) Deploy(_ context.Context, _ *nodered.FlowDocument) (string, error) {
	return "rev", nil
}

func setupTestApp(tempDir string) *fiber.App {
	persistence := file.NewPersistence(tempDir)

	api := NewAPI(
		slog.Default(),
		persistence,
		noopFlowWriter{},
		nil,
	)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Flowdeck API", string(body))
}

func TestAPI_LivenessAndReadiness(t *testing.T) {
	app := setupTestApp(t.TempDir())

	for _, path := range []string{"/livez", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPI_HealthEndpoint(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
