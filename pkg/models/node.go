// Package models defines core node-based workflow models for graph editing.
package models

// Editor-known node kinds. The set is open: the editor may introduce a new
// type string at any time without a persistence change. Translation support
// is a separate registry owned by the translator package; a type can exist
// here long before it becomes deployable.
const (
	NodeTypeStart     = "start"
	NodeTypeTrigger   = "trigger"
	NodeTypeSchedule  = "schedule"
	NodeTypeWebhook   = "webhook"
	NodeTypeEmail     = "email"
	NodeTypeAPI       = "api"
	NodeTypeCode      = "code"
	NodeTypeCondition = "condition"
	NodeTypeDelay     = "delay"
)

// Position is a 2-D canvas coordinate. Layout only, no execution semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorkflowNode represents a single node instance on the canvas.
//
// Data holds the type-specific configuration. Its shape is determined
// entirely by Type: known types have a closed schema enforced at translation
// time, anything else is carried opaquely.
type WorkflowNode struct {
	ID       string         `json:"id"       validate:"required"`
	Type     string         `json:"type"     validate:"required"`
	Label    string         `json:"label,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Position Position       `json:"position"`
}
