// Package nodered models the external flow runtime's document schema and
// wraps its administrative HTTP API. The runtime is a black box: flowdeck
// only knows how to hand it a complete flow document and read back the
// accept/reject signal.
package nodered

import "encoding/json"

// Node is one entry in a flow document. Tabs are nodes too (type "tab");
// regular nodes reference their tab through Z.
//
// Config fields beyond the common ones vary per node type and are carried
// in Extra, flattened into the same JSON object on marshal.
type Node struct {
	ID    string     `json:"id"`
	Type  string     `json:"type"`
	Z     string     `json:"z,omitempty"`
	Name  string     `json:"name,omitempty"`
	Label string     `json:"label,omitempty"` // tabs only
	X     float64    `json:"x,omitempty"`
	Y     float64    `json:"y,omitempty"`
	Wires [][]string `json:"wires,omitempty"`

	Extra map[string]any `json:"-"`
}

// FlowDocument is the full set of nodes submitted in one deploy. The Admin
// API replaces the runtime's state wholesale, which is what gives publish
// its all-or-nothing behavior.
type FlowDocument struct {
	Flows []*Node `json:"flows"`
}

// MarshalJSON flattens Extra into the node object so type-specific config
// fields sit next to the common ones, the way the runtime expects.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Extra)+8)

	for k, v := range n.Extra {
		out[k] = v
	}

	out["id"] = n.ID
	out["type"] = n.Type

	if n.Z != "" {
		out["z"] = n.Z
	}

	if n.Name != "" {
		out["name"] = n.Name
	}

	if n.Label != "" {
		out["label"] = n.Label
	}

	if n.Type != "tab" {
		out["x"] = n.X
		out["y"] = n.Y
		out["wires"] = n.Wires
	}

	return json.Marshal(out)
}

// NewTab creates the tab node all translated nodes attach to.
func NewTab(id, label string) *Node {
	return &Node{
		ID:    id,
		Type:  "tab",
		Label: label,
	}
}
