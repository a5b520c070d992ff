// Package events provides event types and publishing infrastructure for taskq.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventApproval indicates a task was approved or unapproved.
	EventApproval EventType = "approval"
	// EventMoved indicates a task changed position in its queue.
	EventMoved EventType = "moved"
	// EventRenumbered indicates a whole queue was respaced.
	EventRenumbered EventType = "renumbered"

	// Agent pull protocol

	// EventRequested indicates the agent was handed a task.
	EventRequested EventType = "requested"
	// EventFinished indicates the agent finished a task.
	EventFinished EventType = "finished"
)

// Event represents a published event. Events are scoped to the project
// whose queue they concern.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"project_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, projectID, taskID string, data any) Event {
	return Event{
		Type:      eventType,
		ProjectID: projectID,
		TaskID:    taskID,
		Data:      data,
		Time:      time.Now(),
	}
}

// ApprovalData is the payload of EventApproval.
type ApprovalData struct {
	Approved bool  `json:"approved"`
	Position int64 `json:"position,omitempty"`
}

// MoveData is the payload of EventMoved.
type MoveData struct {
	Placement  string `json:"placement"`
	From       int64  `json:"from"`
	To         int64  `json:"to"`
	Renumbered bool   `json:"renumbered,omitempty"`
}

// RenumberData is the payload of EventRenumbered.
type RenumberData struct {
	Entries int `json:"entries"`
}

// TaskData is the payload of the agent protocol events.
type TaskData struct {
	Title string `json:"title"`
}
