package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

var listSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

// List returns a page of workflows matching the options.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	sortColumn, ok := listSortColumns[opts.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	var totalCount int64

	countQuery := `SELECT COUNT(*) FROM workflows WHERE deleted_at IS NULL AND ($1 = '' OR owner = $1)`
	if err := r.db.QueryRowContext(ctx, countQuery, opts.Owner).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	// Sort column and direction come from allowlists above, never from input.
	query := fmt.Sprintf(`
		SELECT
			id
		  , name
		  , version
		  , metadata
		  , owner
		  , created_at
		  , updated_at
		  , deleted_at
		FROM workflows
		WHERE deleted_at IS NULL AND ($1 = '' OR owner = $1)
		ORDER BY %s %s
		LIMIT $2 OFFSET $3
	`, sortColumn, direction)

	rows, err := r.db.QueryContext(ctx, query, opts.Owner, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.WorkflowGraph, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		if err := r.loadNodesAndEdges(ctx, workflow); err != nil {
			return nil, fmt.Errorf("failed to load workflow graph content: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

// GetByID returns the workflow or nil when no record exists.
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*models.WorkflowGraph, error) {
	query := `
		SELECT
			id
		  , name
		  , version
		  , metadata
		  , owner
		  , created_at
		  , updated_at
		  , deleted_at
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := r.scanWorkflowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadNodesAndEdges(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow graph content: %w", err)
	}

	return workflow, nil
}

// Create stores a new workflow with version 1 and writes the assigned ID
// back into the graph.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.WorkflowGraph) error {
	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.Version = 1

	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insertQuery := `
		INSERT INTO workflows (name, version, metadata, owner, created_at, updated_at)
		VALUES ($1, 1, $2, $3, $4, $5)
		RETURNING id
	`

	err = tx.QueryRowContext(ctx, insertQuery,
		workflow.Name,
		metadataJSON,
		workflow.Owner,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	).Scan(&workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	if err = r.saveNodesAndEdges(ctx, tx, workflow); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update replaces an existing workflow's content and returns the new stored
// version. The bump happens inside a single conditional UPDATE so two
// concurrent saves of the same id can never observe the same pre-increment
// version; the row lock it takes also serializes the child-table rewrite.
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.WorkflowGraph) (int64, error) {
	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updateQuery := `
		UPDATE workflows SET
			name = $2,
			metadata = $3,
			owner = $4,
			updated_at = $5,
			version = GREATEST(version + 1, $6)
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING version
	`

	var version int64

	err = tx.QueryRowContext(ctx, updateQuery,
		workflow.ID,
		workflow.Name,
		metadataJSON,
		workflow.Owner,
		time.Now().UTC(),
		workflow.Version,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
		}

		return 0, err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", workflow.ID); err != nil {
		return 0, fmt.Errorf("failed to delete existing edges: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflow.ID); err != nil {
		return 0, fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	if err = r.saveNodesAndEdges(ctx, tx, workflow); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	workflow.Version = version

	return version, nil
}

// Delete soft deletes a workflow by setting the deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id int64) error {
	query := `UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// saveNodesAndEdges inserts the graph's child rows inside the transaction.
func (r *WorkflowRepository) saveNodesAndEdges(ctx context.Context, tx *sql.Tx, workflow *models.WorkflowGraph) error {
	nodeQuery := `
		INSERT INTO workflow_nodes (id, workflow_id, node_type, label, data, position_x, position_y, ordinal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for ordinal, node := range workflow.Nodes {
		dataJSON, err := json.Marshal(node.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal node data: %w", err)
		}

		_, err = tx.ExecContext(ctx, nodeQuery,
			node.ID,
			workflow.ID,
			node.Type,
			node.Label,
			dataJSON,
			node.Position.X,
			node.Position.Y,
			ordinal,
		)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	edgeQuery := `
		INSERT INTO workflow_edges (id, workflow_id, source_node_id, target_node_id, source_handle, target_handle, label)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, edge := range workflow.Edges {
		_, err := tx.ExecContext(ctx, edgeQuery,
			edge.ID,
			workflow.ID,
			edge.Source,
			edge.Target,
			edge.SourceHandle,
			edge.TargetHandle,
			edge.Label,
		)
		if err != nil {
			return fmt.Errorf("failed to save edge %s: %w", edge.ID, err)
		}
	}

	return nil
}

// loadNodesAndEdges fills in the graph content for a scanned workflow row.
func (r *WorkflowRepository) loadNodesAndEdges(ctx context.Context, workflow *models.WorkflowGraph) error {
	nodesQuery := `
		SELECT id, node_type, label, data, position_x, position_y
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY ordinal
	`

	rows, err := r.db.QueryContext(ctx, nodesQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	nodes := make([]*models.WorkflowNode, 0)

	for rows.Next() {
		var (
			node     models.WorkflowNode
			dataJSON []byte
		)

		err := rows.Scan(
			&node.ID,
			&node.Type,
			&node.Label,
			&dataJSON,
			&node.Position.X,
			&node.Position.Y,
		)
		if err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}

		if dataJSON != nil {
			if err := json.Unmarshal(dataJSON, &node.Data); err != nil {
				return fmt.Errorf("failed to unmarshal node data: %w", err)
			}
		}

		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating nodes: %w", err)
	}

	workflow.Nodes = nodes

	edgesQuery := `
		SELECT id, source_node_id, target_node_id, source_handle, target_handle, label
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY id
	`

	edgeRows, err := r.db.QueryContext(ctx, edgesQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow edges: %w", err)
	}

	defer func() {
		if err := edgeRows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	edges := make([]*models.WorkflowEdge, 0)

	for edgeRows.Next() {
		var edge models.WorkflowEdge

		err := edgeRows.Scan(
			&edge.ID,
			&edge.Source,
			&edge.Target,
			&edge.SourceHandle,
			&edge.TargetHandle,
			&edge.Label,
		)
		if err != nil {
			return fmt.Errorf("failed to scan edge: %w", err)
		}

		edges = append(edges, &edge)
	}

	if err := edgeRows.Err(); err != nil {
		return fmt.Errorf("error iterating edges: %w", err)
	}

	workflow.Edges = edges

	return nil
}

func (r *WorkflowRepository) scanWorkflowBase(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowGraph, error) {
	var (
		workflow     models.WorkflowGraph
		metadataJSON []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Version,
		&metadataJSON,
		&workflow.Owner,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &workflow.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &workflow, nil
}
