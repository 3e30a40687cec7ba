// Package persistence provides the data storage abstraction layer for
// workflow graphs.
package persistence

import (
	"context"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// Persistence is the top-level handle to a storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow graphs with server-owned versioning.
//
// Create and Update are the two halves of the save operation. Both must be
// atomic: a caller that abandons the request mid-flight observes either the
// pre-call state or the fully written record, never a partial one. Update's
// version bump has to happen as one conditional write so that two concurrent
// saves of the same id can never read the same pre-increment version.
type WorkflowRepository interface {
	// List returns workflows matching the options, newest first by default.
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)

	// GetByID returns the workflow or nil when no record exists.
	GetByID(ctx context.Context, id int64) (*models.WorkflowGraph, error)

	// Create stores a new graph, assigning its ID and setting Version to 1.
	// The assigned values are written back into the graph.
	Create(ctx context.Context, workflow *models.WorkflowGraph) error

	// Update replaces the content of an existing record and returns the new
	// stored version, computed server-side as max(stored+1, incoming).
	// Returns ErrWorkflowNotFound when the id has no record.
	Update(ctx context.Context, workflow *models.WorkflowGraph) (int64, error)

	// Delete removes the record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id int64) error
}

// ListWorkflowsOptions controls filtering, sorting and pagination for List.
type ListWorkflowsOptions struct {
	Limit     int
	Offset    int
	Owner     string
	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// WorkflowListResult is one page of workflows plus paging metadata.
type WorkflowListResult struct {
	Workflows   []*models.WorkflowGraph `json:"workflows"`
	TotalCount  int64                   `json:"total_count"`
	HasNextPage bool                    `json:"has_next_page"`
}
