package events

// PublishHelper wraps event publishing with nil-safety and convenience methods.
// All methods are safe to call even when the underlying publisher is nil.
//
// Thread-safe: All methods can be called concurrently.
type PublishHelper struct {
	publisher Publisher
}

// NewPublishHelper creates a new PublishHelper wrapping the given publisher.
// If p is nil, all publish operations become no-ops.
func NewPublishHelper(p Publisher) *PublishHelper {
	return &PublishHelper{publisher: p}
}

// Publish sends an event to the underlying publisher.
// Safe to call with nil publisher (no-op).
func (ep *PublishHelper) Publish(ev Event) {
	if ep == nil || ep.publisher == nil {
		return
	}
	ep.publisher.Publish(ev)
}

// Approval publishes an approval change. position is 0 on unapproval.
func (ep *PublishHelper) Approval(projectID, taskID string, approved bool, position int64) {
	ep.Publish(NewEvent(EventApproval, projectID, taskID, ApprovalData{
		Approved: approved,
		Position: position,
	}))
}

// Moved publishes a completed reorder.
func (ep *PublishHelper) Moved(projectID, taskID string, data MoveData) {
	ep.Publish(NewEvent(EventMoved, projectID, taskID, data))
}

// Renumbered publishes a queue respace.
func (ep *PublishHelper) Renumbered(projectID string, entries int) {
	ep.Publish(NewEvent(EventRenumbered, projectID, "", RenumberData{Entries: entries}))
}

// Requested publishes that the agent was handed a task.
func (ep *PublishHelper) Requested(projectID, taskID, title string) {
	ep.Publish(NewEvent(EventRequested, projectID, taskID, TaskData{Title: title}))
}

// Finished publishes that the agent finished a task.
func (ep *PublishHelper) Finished(projectID, taskID, title string) {
	ep.Publish(NewEvent(EventFinished, projectID, taskID, TaskData{Title: title}))
}
