// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Topic carries all workflow lifecycle events.
const Topic = "flowdeck.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowSavedEvent     EventType = "workflow.saved"
	WorkflowPublishedEvent EventType = "workflow.published"
	WorkflowDeletedEvent   EventType = "workflow.deleted"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID int64          `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WorkflowSaved is emitted after every successful save, whether the save
// created the record or bumped its version.
type WorkflowSaved struct {
	BaseEvent

	Name    string `json:"name"`
	Version int64  `json:"version"`
	Created bool   `json:"created"`
}

func (w WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

// WorkflowPublished is emitted after the external runtime accepted the
// translated flow document.
type WorkflowPublished struct {
	BaseEvent

	Version      int64    `json:"version"`
	DeploymentID string   `json:"deployment_id"`
	Warnings     []string `json:"warnings,omitempty"`
}

func (w WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}

// WorkflowDeleted is emitted after a stored workflow is removed.
type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}
