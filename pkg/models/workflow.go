// Package models defines the core domain models for node-based workflow automation.
package models

import "time"

// WorkflowGraph represents one automation flow as drawn in the editor:
// nodes, the edges connecting them, and free-form metadata.
//
// A graph with ID == 0 has never been saved. The persistence layer assigns
// the identifier on first save and owns the version counter from then on;
// the version carried by an incoming graph is a hint, never the authority.
type WorkflowGraph struct {
	ID        int64           `json:"id,omitempty"`
	Name      string          `json:"name"                 validate:"required,min=1"`
	Version   int64           `json:"version,omitempty"`
	Nodes     []*WorkflowNode `json:"nodes"`
	Edges     []*WorkflowEdge `json:"edges"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Owner     string          `json:"owner,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitzero"`
	UpdatedAt time.Time       `json:"updated_at,omitzero"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

// IsSaved reports whether the graph has a persistence-assigned identity.
func (w *WorkflowGraph) IsSaved() bool {
	return w.ID != 0
}

// NodeIndex returns the graph's nodes keyed by node ID.
func (w *WorkflowGraph) NodeIndex() map[string]*WorkflowNode {
	index := make(map[string]*WorkflowNode, len(w.Nodes))
	for _, node := range w.Nodes {
		index[node.ID] = node
	}

	return index
}
