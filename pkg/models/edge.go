package models

// WorkflowEdge connects two nodes in the same graph. Source and Target must
// both reference a WorkflowNode.ID present in the graph; dangling references
// are a validation failure, not a soft warning.
//
// SourceHandle and TargetHandle address sub-connectors on multi-port nodes
// and are empty for plain single-port connections.
type WorkflowEdge struct {
	ID           string `json:"id"     validate:"required"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}
