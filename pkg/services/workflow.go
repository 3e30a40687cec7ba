package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowdeck/flowdeck/pkg/eventbus"
	"github.com/flowdeck/flowdeck/pkg/events"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/otelhelper"
	"github.com/flowdeck/flowdeck/pkg/persistence"
)

// Workflow implements the save/list/fetch/delete operations over stored
// workflow graphs.
type Workflow struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, eventBus eventbus.EventBus, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: persistence,
		eventBus:    eventBus,
		logger:      logger.With("module", "workflow_service"),
		tracer:      noop.NewTracerProvider().Tracer("workflow_service"),
	}
}

// WithTracer replaces the no-op tracer.
func (w *Workflow) WithTracer(tracer trace.Tracer) *Workflow {
	w.tracer = tracer

	return w
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// SaveResult reports the outcome of a save: the storage-assigned identity
// and the server-computed version.
type SaveResult struct {
	WorkflowID int64 `json:"workflow_id"`
	Version    int64 `json:"version"`
	Created    bool  `json:"-"`
}

// Save validates the graph and writes it through the repository. A graph
// without an ID is created with version 1; a graph carrying an ID replaces
// the stored record and gets max(stored+1, incoming) as its new version.
//
// Validation failures leave stored state untouched: nothing is written and
// no version is consumed.
func (w *Workflow) Save(ctx context.Context, workflow *models.WorkflowGraph) (*SaveResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.save")
	defer span.End()

	if err := ValidateGraph(workflow); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowNameKey, workflow.Name))

	// Some editors omit edge ids on freshly drawn connections.
	for _, edge := range workflow.Edges {
		if edge.ID == "" {
			edge.ID = uuid.New().String()
		}
	}

	created := !workflow.IsSaved()

	if created {
		workflow.CreatedAt = time.Now().UTC()
		workflow.UpdatedAt = workflow.CreatedAt

		if err := w.persistence.WorkflowRepository().Create(ctx, workflow); err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("failed to create workflow: %w", err)
		}
	} else {
		workflow.UpdatedAt = time.Now().UTC()

		version, err := w.persistence.WorkflowRepository().Update(ctx, workflow)
		if err != nil {
			otelhelper.SetError(span, err)

			if persistence.IsWorkflowNotFound(err) {
				return nil, ErrWorkflowNotFound
			}

			return nil, fmt.Errorf("failed to update workflow: %w", err)
		}

		workflow.Version = version
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowIDKey, strconv.FormatInt(workflow.ID, 10)),
		attribute.Int64(otelhelper.WorkflowVersionKey, workflow.Version),
	)

	w.logger.InfoContext(ctx, "Workflow saved",
		"workflow_id", workflow.ID,
		"version", workflow.Version,
		"created", created,
	)

	w.publishSaved(ctx, workflow, created)

	return &SaveResult{WorkflowID: workflow.ID, Version: workflow.Version, Created: created}, nil
}

// ValidateGraph checks the structural rules every graph must satisfy before
// it touches storage: a name, unique non-empty node and edge ids, and edges
// whose endpoints both exist.
func ValidateGraph(workflow *models.WorkflowGraph) error {
	if workflow == nil {
		return ErrWorkflowNil
	}

	if strings.TrimSpace(workflow.Name) == "" {
		return ErrWorkflowNameRequired
	}

	nodeIDs := make(map[string]struct{}, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if node.ID == "" {
			return ErrEmptyNodeID
		}

		if _, dup := nodeIDs[node.ID]; dup {
			return NewValidationError("ValidateGraph", "DUPLICATE_NODE_ID",
				fmt.Sprintf("node id %q appears more than once", node.ID), ErrDuplicateNodeID)
		}

		nodeIDs[node.ID] = struct{}{}
	}

	edgeIDs := make(map[string]struct{}, len(workflow.Edges))

	for _, edge := range workflow.Edges {
		if edge.ID != "" {
			if _, dup := edgeIDs[edge.ID]; dup {
				return NewValidationError("ValidateGraph", "DUPLICATE_EDGE_ID",
					fmt.Sprintf("edge id %q appears more than once", edge.ID), ErrDuplicateEdgeID)
			}

			edgeIDs[edge.ID] = struct{}{}
		}

		if _, ok := nodeIDs[edge.Source]; !ok {
			return NewValidationError("ValidateGraph", "DANGLING_EDGE",
				fmt.Sprintf("edge %s: source node %q does not exist", edge.ID, edge.Source), ErrDanglingEdge)
		}

		if _, ok := nodeIDs[edge.Target]; !ok {
			return NewValidationError("ValidateGraph", "DANGLING_EDGE",
				fmt.Sprintf("edge %s: target node %q does not exist", edge.ID, edge.Target), ErrDanglingEdge)
		}
	}

	return nil
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int `validate:"min=0,max=100"`
	Offset int `validate:"min=0"`

	Owner string

	SortBy    string `validate:"omitempty,oneof=created_at updated_at name"`
	SortOrder string `validate:"omitempty,oneof=asc desc"`
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.WorkflowGraph `json:"workflows"`
	TotalCount  int64                   `json:"total_count"`
	HasNextPage bool                    `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, err
	}

	opts := persistence.ListWorkflowsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		Owner:     req.Owner,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}

	result, err := w.persistence.WorkflowRepository().List(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}
	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	return nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id int64) (*models.WorkflowGraph, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID int64) error {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrWorkflowNotFound
	}

	if err := w.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", workflowID)

	if w.eventBus != nil {
		event := events.WorkflowDeleted{
			BaseEvent: events.BaseEvent{
				ID:         w.eventBus.GenerateID(),
				Type:       events.WorkflowDeletedEvent,
				Timestamp:  time.Now().UTC(),
				WorkflowID: workflowID,
			},
		}

		if err := w.eventBus.Publish(ctx, strconv.FormatInt(workflowID, 10), event); err != nil {
			w.logger.WarnContext(ctx, "Failed to publish workflow deleted event", "error", err)
		}
	}

	return nil
}

// publishSaved emits the lifecycle event. Event delivery is best effort,
// the save itself already succeeded.
func (w *Workflow) publishSaved(ctx context.Context, workflow *models.WorkflowGraph, created bool) {
	if w.eventBus == nil {
		return
	}

	event := events.WorkflowSaved{
		BaseEvent: events.BaseEvent{
			ID:         w.eventBus.GenerateID(),
			Type:       events.WorkflowSavedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflow.ID,
		},
		Name:    workflow.Name,
		Version: workflow.Version,
		Created: created,
	}

	if err := w.eventBus.Publish(ctx, strconv.FormatInt(workflow.ID, 10), event); err != nil {
		w.logger.WarnContext(ctx, "Failed to publish workflow saved event", "error", err)
	}
}
