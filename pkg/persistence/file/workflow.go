package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
)

const sequenceFile = ".sequence"

// WorkflowRepository handles workflow-related file operations.
//
// All writes are serialized by a process-wide mutex so that the
// read-increment-write of Update is race-free, and land via a temp file
// rename so an abandoned save never leaves a partially written record.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// List returns paginated and filtered workflows with in-memory operations.
func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	root := os.DirFS(wr.workflowsDir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.WorkflowGraph, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id, err := strconv.ParseInt(file[:len(file)-5], 10, 64)
		if err != nil {
			continue // not a workflow document
		}

		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %d: %w", id, err)
		}

		if workflow == nil {
			continue
		}

		if opts.Owner != "" && workflow.Owner != opts.Owner {
			continue
		}

		workflows = append(workflows, workflow)
	}

	wr.sortWorkflows(workflows, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(workflows))
	startIdx := opts.Offset
	endIdx := opts.Offset + opts.Limit

	if startIdx >= len(workflows) {
		return &persistence.WorkflowListResult{
			Workflows:   make([]*models.WorkflowGraph, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	if endIdx > len(workflows) {
		endIdx = len(workflows)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(workflows),
	}, nil
}

// sortWorkflows sorts workflows in-place based on the specified field and order.
func (wr *WorkflowRepository) sortWorkflows(workflows []*models.WorkflowGraph, sortBy, sortOrder string) {
	sort.Slice(workflows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "updated_at":
			less = workflows[i].UpdatedAt.Before(workflows[j].UpdatedAt)
		case "name":
			less = workflows[i].Name < workflows[j].Name
		default:
			less = workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id int64) (*models.WorkflowGraph, error) {
	body, err := os.ReadFile(wr.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch workflow %d: %w", id, err)
	}

	var workflow models.WorkflowGraph

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %d: %w", id, err)
	}

	return &workflow, nil
}

// Create stores a new workflow, assigning the next sequence ID and version 1.
func (wr *WorkflowRepository) Create(ctx context.Context, workflow *models.WorkflowGraph) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := os.MkdirAll(wr.workflowsDir(), 0750); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	id, err := wr.nextID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	workflow.ID = id
	workflow.Version = 1
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	return wr.write(workflow)
}

// Update replaces an existing workflow's content and bumps the stored
// version to max(stored+1, incoming). The whole operation runs under the
// repository mutex, which is what makes the increment race-free here.
func (wr *WorkflowRepository) Update(ctx context.Context, workflow *models.WorkflowGraph) (int64, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	existing, err := wr.GetByID(ctx, workflow.ID)
	if err != nil {
		return 0, err
	}

	if existing == nil {
		return 0, persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	version := existing.Version + 1
	if workflow.Version > version {
		version = workflow.Version
	}

	workflow.Version = version
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := wr.write(workflow); err != nil {
		return 0, err
	}

	return version, nil
}

// Delete removes a workflow by its ID. Absent ids are not an error.
func (wr *WorkflowRepository) Delete(_ context.Context, id int64) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(wr.workflowPath(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete workflow %d: %w", id, err)
	}

	return nil
}

// write marshals and durably replaces the workflow document. Writing to a
// temp file first keeps the replace atomic at the rename.
func (wr *WorkflowRepository) write(workflow *models.WorkflowGraph) error {
	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %d: %w", workflow.ID, err)
	}

	target := wr.workflowPath(workflow.ID)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write workflow %d: %w", workflow.ID, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to store workflow %d: %w", workflow.ID, err)
	}

	return nil
}

// nextID reads, increments and persists the sequence counter.
func (wr *WorkflowRepository) nextID() (int64, error) {
	seqPath := path.Join(wr.workflowsDir(), sequenceFile)

	var current int64

	body, err := os.ReadFile(seqPath)
	if err == nil {
		current, err = strconv.ParseInt(string(body), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt sequence file %s: %w", seqPath, err)
		}
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to read sequence file: %w", err)
	}

	next := current + 1
	if err := os.WriteFile(seqPath, []byte(strconv.FormatInt(next, 10)), 0600); err != nil {
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}

	return next, nil
}

func (wr *WorkflowRepository) workflowsDir() string {
	return path.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) workflowPath(id int64) string {
	return filepath.Clean(path.Join(wr.workflowsDir(), strconv.FormatInt(id, 10)+".json"))
}
