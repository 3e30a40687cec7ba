// Package services provides workflow publishing into the external runtime.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowdeck/flowdeck/pkg/eventbus"
	"github.com/flowdeck/flowdeck/pkg/events"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/nodered"
	"github.com/flowdeck/flowdeck/pkg/otelhelper"
	"github.com/flowdeck/flowdeck/pkg/persistence"
	"github.com/flowdeck/flowdeck/pkg/translator"
)

// Publishing deploys stored workflow graphs to the external runtime.
//
// The pipeline is fetch, translate, deploy, in that order. Any failure stops
// the pipeline before the next stage: an unknown workflow never reaches the
// translator, and a graph that fails translation never reaches the runtime.
type Publishing struct {
	persistence persistence.Persistence
	flows       nodered.FlowWriter
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewPublishing creates a new workflow publishing service.
func NewPublishing(
	persistence persistence.Persistence,
	flows nodered.FlowWriter,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Publishing {
	return &Publishing{
		persistence: persistence,
		flows:       flows,
		eventBus:    eventBus,
		logger:      logger.With("module", "publishing_service"),
		tracer:      noop.NewTracerProvider().Tracer("publishing_service"),
	}
}

// WithTracer replaces the no-op tracer.
func (p *Publishing) WithTracer(tracer trace.Tracer) *Publishing {
	p.tracer = tracer

	return p
}

// PublishResult reports a successful deploy.
type PublishResult struct {
	Status       string   `json:"status"`
	WorkflowID   int64    `json:"workflow_id"`
	Version      int64    `json:"version"`
	DeploymentID string   `json:"deployment_id"`
	Revision     string   `json:"revision,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Publish translates the stored workflow and writes it to the runtime as
// one full-deployment request.
func (p *Publishing) Publish(ctx context.Context, workflowID int64) (*PublishResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "workflow.publish",
		attribute.String(otelhelper.WorkflowIDKey, strconv.FormatInt(workflowID, 10)))
	defer span.End()

	workflow, err := p.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		otelhelper.SetError(span, ErrWorkflowNotFound)

		return nil, ErrWorkflowNotFound
	}

	result, err := translator.Translate(workflow)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	for _, warning := range result.Warnings {
		p.logger.WarnContext(ctx, "Lossy translation",
			"workflow_id", workflowID,
			"warning", warning,
		)
	}

	revision, err := p.flows.Deploy(ctx, result.Document)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	deploymentID := uuid.New().String()

	span.SetAttributes(
		attribute.Int64(otelhelper.WorkflowVersionKey, workflow.Version),
		attribute.String(otelhelper.DeploymentIDKey, deploymentID),
	)

	p.logger.InfoContext(ctx, "Workflow published",
		"workflow_id", workflowID,
		"version", workflow.Version,
		"deployment_id", deploymentID,
		"revision", revision,
		"warnings", len(result.Warnings),
	)

	p.publishEvent(ctx, workflow, deploymentID, result.Warnings)

	return &PublishResult{
		Status:       "published",
		WorkflowID:   workflowID,
		Version:      workflow.Version,
		DeploymentID: deploymentID,
		Revision:     revision,
		Warnings:     result.Warnings,
	}, nil
}

func (p *Publishing) publishEvent(ctx context.Context, workflow *models.WorkflowGraph, deploymentID string, warnings []string) {
	if p.eventBus == nil {
		return
	}

	event := events.WorkflowPublished{
		BaseEvent: events.BaseEvent{
			ID:         p.eventBus.GenerateID(),
			Type:       events.WorkflowPublishedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflow.ID,
		},
		Version:      workflow.Version,
		DeploymentID: deploymentID,
		Warnings:     warnings,
	}

	if err := p.eventBus.Publish(ctx, strconv.FormatInt(workflow.ID, 10), event); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish workflow published event", "error", err)
	}
}
