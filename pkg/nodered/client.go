package nodered

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowdeck/flowdeck/pkg/otelhelper"
)

// ErrRuntimeUnavailable indicates the runtime could not be reached or
// rejected the deploy. Transient from the caller's point of view; whether to
// retry is the caller's decision, never this client's.
var ErrRuntimeUnavailable = errors.New("flow runtime unavailable")

const (
	defaultTimeout = 30 * time.Second

	deploymentTypeHeader = "Node-RED-Deployment-Type"
	apiVersionHeader     = "Node-RED-API-Version"
)

// FlowWriter is the single capability the publish pipeline needs from the
// runtime: replace its flow state with one document.
type FlowWriter interface {
	Deploy(ctx context.Context, doc *FlowDocument) (string, error)
}

// Client talks to the runtime's administrative HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewClient creates an admin API client for the runtime at baseURL.
// token may be empty when the runtime runs without admin auth.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		tracer:     noop.NewTracerProvider().Tracer("nodered"),
	}
}

// WithTracer replaces the no-op tracer. Returns the client for chaining.
func (c *Client) WithTracer(tracer trace.Tracer) *Client {
	c.tracer = tracer

	return c
}

type deployResponse struct {
	Rev string `json:"rev"`
}

// Deploy submits the document as one full create-or-replace write and
// returns the runtime's revision identifier. Network failures and non-2xx
// responses both surface as ErrRuntimeUnavailable; the runtime guarantees
// the write is all-or-nothing, this client only forwards the one request.
func (c *Client) Deploy(ctx context.Context, doc *FlowDocument) (string, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "nodered.deploy",
		attribute.String(otelhelper.RuntimeURLKey, c.baseURL),
		attribute.Int("flowdeck.flow.node_count", len(doc.Flows)),
	)
	defer span.End()

	payload, err := json.Marshal(doc)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", fmt.Errorf("failed to encode flow document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/flows", bytes.NewReader(payload))
	if err != nil {
		otelhelper.SetError(span, err)

		return "", fmt.Errorf("failed to build deploy request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(deploymentTypeHeader, "full")
	req.Header.Set(apiVersionHeader, "v2")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", fmt.Errorf("%w: %w", ErrRuntimeUnavailable, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WarnContext(ctx, "failed to close runtime response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		otelhelper.SetError(span, err)

		return "", fmt.Errorf("%w: reading response: %w", ErrRuntimeUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("%w: runtime returned status %d: %s", ErrRuntimeUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
		otelhelper.SetError(span, err)

		return "", err
	}

	var deployed deployResponse
	if err := json.Unmarshal(body, &deployed); err != nil {
		// Older runtimes answer 204 with no body; the deploy still succeeded.
		c.logger.DebugContext(ctx, "runtime returned no revision", "status", resp.StatusCode)
	}

	c.logger.InfoContext(ctx, "flow document deployed", "rev", deployed.Rev, "nodes", len(doc.Flows))

	return deployed.Rev, nil
}

// IsRuntimeUnavailable checks if an error indicates the runtime could not be reached.
func IsRuntimeUnavailable(err error) bool {
	return errors.Is(err, ErrRuntimeUnavailable)
}
