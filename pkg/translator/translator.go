// Package translator converts stored workflow graphs into the external
// runtime's flow-document schema.
//
// The mapping table here is deliberately separate from the editor's node
// vocabulary: the editor may carry node types the translator does not know
// yet, and publishing such a graph fails loudly instead of silently dropping
// nodes the user designed.
package translator

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/nodered"
)

// Translation error sentinels. All of them mean "fix the graph", as opposed
// to the runtime being unreachable.
var (
	// ErrUnknownNodeType indicates a node type with no runtime mapping.
	ErrUnknownNodeType = errors.New("node type is not translatable")

	// ErrInvalidNodeData indicates a known node type whose data does not
	// match the type's schema.
	ErrInvalidNodeData = errors.New("node data does not match its type schema")

	// ErrUnknownSourceHandle indicates an edge addressing a named output
	// that does not exist on a multi-output runtime node.
	ErrUnknownSourceHandle = errors.New("edge references an unknown source handle")
)

// IsTranslationError checks whether an error means the graph content is not
// representable in the runtime schema.
func IsTranslationError(err error) bool {
	return errors.Is(err, ErrUnknownNodeType) ||
		errors.Is(err, ErrInvalidNodeData) ||
		errors.Is(err, ErrUnknownSourceHandle)
}

// NodeError wraps a translation failure with the offending node's identity.
type NodeError struct {
	NodeID   string
	NodeType string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (type %s): %v", e.NodeID, e.NodeType, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Result carries the translated document plus any lossy-mapping warnings
// the caller must be able to see.
type Result struct {
	Document *nodered.FlowDocument
	Warnings []string
}

// Translate maps the workflow into one runtime flow document.
//
// Every node must have a mapping and schema-valid data; otherwise the whole
// translation fails and nothing is produced. Port-addressing fallbacks
// (single-output handle mismatch, named target handles) degrade to the
// first compatible port and are reported as warnings instead.
func Translate(workflow *models.WorkflowGraph) (*Result, error) {
	tabID := flowTabID(workflow.ID)
	doc := &nodered.FlowDocument{
		Flows: []*nodered.Node{nodered.NewTab(tabID, workflow.Name)},
	}

	translated := make(map[string]*nodered.Node, len(workflow.Nodes))
	outputs := make(map[string][]string, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		mapping, ok := mappings[node.Type]
		if !ok {
			return nil, &NodeError{NodeID: node.ID, NodeType: node.Type, Err: ErrUnknownNodeType}
		}

		if err := mapping.validateData(node); err != nil {
			return nil, &NodeError{NodeID: node.ID, NodeType: node.Type, Err: err}
		}

		extra, err := mapping.Configure(node)
		if err != nil {
			return nil, &NodeError{NodeID: node.ID, NodeType: node.Type, Err: err}
		}

		handles := mapping.outputHandles(node)

		runtimeNode := &nodered.Node{
			ID:    runtimeNodeID(workflow.ID, node.ID),
			Type:  mapping.RuntimeType,
			Z:     tabID,
			Name:  nodeName(node),
			X:     node.Position.X,
			Y:     node.Position.Y,
			Wires: make([][]string, len(handles)),
			Extra: extra,
		}

		for i := range runtimeNode.Wires {
			runtimeNode.Wires[i] = []string{}
		}

		translated[node.ID] = runtimeNode
		outputs[node.ID] = handles
		doc.Flows = append(doc.Flows, runtimeNode)
	}

	warnings := make([]string, 0)

	for _, edge := range workflow.Edges {
		source := translated[edge.Source]
		target := translated[edge.Target]

		// Stored graphs are validated on save; a dangling edge here means
		// the store was tampered with, not a user mistake.
		if source == nil || target == nil {
			return nil, fmt.Errorf("%w: edge %s references a missing node", ErrInvalidNodeData, edge.ID)
		}

		port, warning, err := resolveSourcePort(edge, outputs[edge.Source])
		if err != nil {
			return nil, err
		}

		if warning != "" {
			warnings = append(warnings, warning)
		}

		if edge.TargetHandle != "" {
			warnings = append(warnings, fmt.Sprintf(
				"edge %s: runtime has no named input ports; target handle %q connected to the default input of node %s",
				edge.ID, edge.TargetHandle, edge.Target))
		}

		source.Wires[port] = append(source.Wires[port], target.ID)
	}

	return &Result{Document: doc, Warnings: warnings}, nil
}

// resolveSourcePort maps an edge's source handle to a runtime output index.
//
// Named handles the node type declares resolve exactly. A handle unknown to
// a single-output node falls back to port 0 with a warning; on a
// multi-output node the intent is ambiguous, so translation fails.
func resolveSourcePort(edge *models.WorkflowEdge, handles []string) (int, string, error) {
	if edge.SourceHandle == "" {
		return 0, "", nil
	}

	for i, handle := range handles {
		if handle == edge.SourceHandle {
			return i, "", nil
		}
	}

	if len(handles) > 1 {
		return 0, "", &NodeError{
			NodeID:   edge.Source,
			NodeType: "",
			Err:      fmt.Errorf("%w: edge %s addresses handle %q", ErrUnknownSourceHandle, edge.ID, edge.SourceHandle),
		}
	}

	warning := fmt.Sprintf("edge %s: source handle %q not defined on node %s; connected to its only output",
		edge.ID, edge.SourceHandle, edge.Source)

	return 0, warning, nil
}

func nodeName(node *models.WorkflowNode) string {
	if node.Label != "" {
		return node.Label
	}

	return node.ID
}

func flowTabID(workflowID int64) string {
	return "flowdeck." + strconv.FormatInt(workflowID, 10)
}

func runtimeNodeID(workflowID int64, nodeID string) string {
	return "wf" + strconv.FormatInt(workflowID, 10) + "." + nodeID
}
