// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/flowdeck/flowdeck/pkg/models"
)

// SaveWorkflowRequest is the editor's save payload: the full graph, exactly
// as drawn. A zero or absent id means "create"; a non-zero id replaces the
// stored graph wholesale. The version is a client hint only, the stored
// version is always computed server-side.
type SaveWorkflowRequest struct {
	ID       int64                  `json:"id,omitempty"`
	Name     string                 `json:"name"               validate:"required,min=1"`
	Version  int64                  `json:"version,omitempty"`
	Nodes    []*models.WorkflowNode `json:"nodes"`
	Edges    []*models.WorkflowEdge `json:"edges"`
	Metadata map[string]any         `json:"metadata,omitempty"`
	Owner    string                 `json:"owner,omitempty"`
}

// ToGraph converts the request into the domain model.
func (r *SaveWorkflowRequest) ToGraph() *models.WorkflowGraph {
	return &models.WorkflowGraph{
		ID:       r.ID,
		Name:     r.Name,
		Version:  r.Version,
		Nodes:    r.Nodes,
		Edges:    r.Edges,
		Metadata: r.Metadata,
		Owner:    r.Owner,
	}
}

// SaveWorkflowResponse reports the stored identity after a successful save.
type SaveWorkflowResponse struct {
	WorkflowID int64 `json:"workflow_id"`
	Version    int64 `json:"version"`
}

// PublishWorkflowRequest addresses a stored workflow to deploy.
type PublishWorkflowRequest struct {
	WorkflowID int64 `json:"workflow_id" validate:"required,gt=0"`
}

// PublishWorkflowResponse reports a successful deploy, including any lossy
// port-mapping warnings the translator produced.
type PublishWorkflowResponse struct {
	Status       string   `json:"status"`
	WorkflowID   int64    `json:"workflow_id"`
	Version      int64    `json:"version"`
	DeploymentID string   `json:"deployment_id"`
	Revision     string   `json:"revision,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}
