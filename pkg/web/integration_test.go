//go:build integration

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence/postgresql"
	"github.com/flowdeck/flowdeck/pkg/services"
	"github.com/flowdeck/flowdeck/pkg/web"
)

func setupTestDB(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_flowdeck",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbURL := fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_flowdeck?sslmode=disable", host, port.Port())

	time.Sleep(2 * time.Second)

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return dbURL, cleanup
}

func setupIntegrationApp(t *testing.T, dbURL string) (*fiber.App, *stubFlowWriter) {
	persistence, err := postgresql.NewPersistence(context.Background(), slog.Default(), dbURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = persistence.Close(context.Background()) })

	flows := &stubFlowWriter{}

	workflowService := services.NewWorkflow(persistence, nil, slog.Default())
	publishingService := services.NewPublishing(persistence, flows, nil, slog.Default())
	v := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(workflowService, publishingService, v)

	app := fiber.New()
	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/save", handlers.SaveWorkflow)
	w.Post("/publish", handlers.PublishWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	return app, flows
}

func postIntegrationJSON(t *testing.T, app *fiber.App, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, respBody
}

func TestWorkflowLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbURL, cleanup := setupTestDB(t)
	defer cleanup()

	app, flows := setupIntegrationApp(t, dbURL)

	save := web.SaveWorkflowRequest{
		Name: "Integration flow",
		Nodes: []*models.WorkflowNode{
			{ID: "hook", Type: models.NodeTypeWebhook, Data: map[string]any{"path": "/in"}, Position: models.Position{X: 40, Y: 40}},
			{ID: "call", Type: models.NodeTypeAPI, Data: map[string]any{"url": "https://api.example.com/x"}},
		},
		Edges: []*models.WorkflowEdge{
			{ID: "e1", Source: "hook", Target: "call"},
		},
		Owner: "integration-test-user",
	}

	var workflowID int64

	t.Run("Save", func(t *testing.T) {
		resp, body := postIntegrationJSON(t, app, "/workflows/save", save)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result web.SaveWorkflowResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.Positive(t, result.WorkflowID)
		assert.Equal(t, int64(1), result.Version)

		workflowID = result.WorkflowID
	})

	t.Run("Resave bumps version", func(t *testing.T) {
		save.ID = workflowID
		save.Name = "Integration flow v2"

		resp, body := postIntegrationJSON(t, app, "/workflows/save", save)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result web.SaveWorkflowResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.Equal(t, workflowID, result.WorkflowID)
		assert.Equal(t, int64(2), result.Version)
	})

	t.Run("Fetch round trip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/workflows/%d", workflowID), nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var workflow models.WorkflowGraph
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))
		assert.Equal(t, "Integration flow v2", workflow.Name)
		require.Len(t, workflow.Nodes, 2)
		assert.Equal(t, "/in", workflow.Nodes[0].Data["path"])
		assert.Equal(t, 40.0, workflow.Nodes[0].Position.X)
		require.Len(t, workflow.Edges, 1)
	})

	t.Run("Publish", func(t *testing.T) {
		resp, body := postIntegrationJSON(t, app, "/workflows/publish", web.PublishWorkflowRequest{WorkflowID: workflowID})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result web.PublishWorkflowResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.Equal(t, "published", result.Status)
		assert.Equal(t, int64(2), result.Version)
		assert.Equal(t, 1, flows.deploys)
	})

	t.Run("Delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/workflows/%d", workflowID), nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/workflows/%d", workflowID), nil)
		resp, err = app.Test(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
