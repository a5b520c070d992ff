package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/taskq/internal/db"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
	"github.com/randalmurphal/taskq/internal/events"
)

// Messages returned by PollNextTask in place of a prompt.
const (
	MsgNoProjects = "No projects found."

	msgEmptyQueue  = "No approved tasks found in project '%s'."
	msgAllBlocked  = "No approved tasks available in project '%s': all approved tasks are paused or finished."
	msgAllDone     = "All approved tasks in project '%s' are finished. There is nothing left to do."
	msgFailedStep  = "Failed to %s: %v"
	msgFailedTrans = "Failed to mark task '%s' as %s: %v"

	// ContinuationHint is appended to a prompt while more work is queued.
	ContinuationHint = "\n\n---\nWhen this task is complete, call next_task again to mark it finished and receive the next one."
)

// Selector hands out the queue of the active project one task at a time.
// Each call either marks the current task requested and returns its prompt,
// or marks it finished and moves on to the next.
type Selector struct {
	store  *db.Store
	events *events.PublishHelper
	logger *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithPublisher sets the publisher that receives requested and finished events.
func WithPublisher(p events.Publisher) SelectorOption {
	return func(s *Selector) {
		s.events = events.NewPublishHelper(p)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = l
	}
}

// NewSelector creates a selector over store.
func NewSelector(store *db.Store, opts ...SelectorOption) *Selector {
	s := &Selector{
		store:  store,
		events: events.NewPublishHelper(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pollFailure carries a ready-made diagnostic out of the transaction.
type pollFailure struct {
	msg string
}

func (f *pollFailure) Error() string { return f.msg }

// pollOutcome is what one poll did, published after commit.
type pollOutcome struct {
	text      string
	requested *db.Task
	finished  *db.Task
}

// PollNextTask advances the active project's queue by one step and returns
// the text for the agent. It never fails: problems come back as messages.
func (s *Selector) PollNextTask(ctx context.Context) string {
	projectID, err := s.activeProject(ctx)
	if tqerrors.HasCode(err, tqerrors.CodeNoProjects) {
		return MsgNoProjects
	}
	if err != nil {
		return fmt.Sprintf(msgFailedStep, "determine the active project", err)
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Sprintf(msgFailedStep, fmt.Sprintf("load project '%s'", projectID), err)
	}
	if project == nil {
		return MsgNoProjects
	}

	var out pollOutcome
	err = s.store.RunInTxRetry(ctx, func(tx *db.TxOps) error {
		out = pollOutcome{}
		return s.advance(tx, project, &out)
	})
	if err != nil {
		var f *pollFailure
		if errors.As(err, &f) {
			s.logger.Warn("poll failed", "project", projectID, "error", f.msg)
			return f.msg
		}
		s.logger.Error("poll failed", "project", projectID, "error", err)
		return fmt.Sprintf(msgFailedStep, fmt.Sprintf("advance the queue of project '%s'", project.Name), err)
	}

	if out.finished != nil {
		s.logger.Info("task finished", "project", projectID, "task", out.finished.ID)
		s.events.Finished(projectID, out.finished.ID, out.finished.Title)
	}
	if out.requested != nil {
		s.logger.Info("task requested", "project", projectID, "task", out.requested.ID)
		s.events.Requested(projectID, out.requested.ID, out.requested.Title)
	}
	return out.text
}

// advance runs one protocol step inside tx.
func (s *Selector) advance(tx *db.TxOps, project *db.Project, out *pollOutcome) error {
	items, err := db.ListQueueTx(tx, project.ID)
	if err != nil {
		return &pollFailure{fmt.Sprintf(msgFailedStep, fmt.Sprintf("load the queue of project '%s'", project.Name), err)}
	}
	if len(items) == 0 {
		out.text = fmt.Sprintf(msgEmptyQueue, project.Name)
		return nil
	}

	candidates := actionable(items)
	if len(candidates) == 0 {
		out.text = fmt.Sprintf(msgAllBlocked, project.Name)
		return nil
	}

	current := candidates[0]
	m, err := queuedMachine(current)
	if err != nil {
		return transitionFailure(current.ID, StateRequested, err)
	}

	if m.Current() == StateApproved {
		if err := s.request(tx, m, current); err != nil {
			return err
		}
		out.requested = current
		out.text = PromptText(current) + ContinuationHint
		return nil
	}

	if err := m.Fire(EventFinish); err != nil {
		return transitionFailure(current.ID, StateFinished, err)
	}
	now := s.store.Now()
	if _, err := db.SetTaskFinishedTx(tx, current.ID, true, now); err != nil {
		return transitionFailure(current.ID, StateFinished, err)
	}
	if _, err := db.SetTaskPausedTx(tx, current.ID, false, now); err != nil {
		return transitionFailure(current.ID, StateFinished, err)
	}
	out.finished = current

	remaining := candidates[1:]
	if len(remaining) == 0 {
		out.text = fmt.Sprintf(msgAllDone, project.Name)
		return nil
	}

	next := remaining[0]
	nm, err := queuedMachine(next)
	if err != nil {
		return transitionFailure(next.ID, StateRequested, err)
	}
	if nm.Current() == StateApproved {
		if err := s.request(tx, nm, next); err != nil {
			return err
		}
		out.requested = next
	}

	out.text = PromptText(next)
	if len(remaining) > 1 {
		out.text += ContinuationHint
	}
	return nil
}

func (s *Selector) request(tx *db.TxOps, m *TaskMachine, t *db.Task) error {
	if err := m.Fire(EventRequest); err != nil {
		return transitionFailure(t.ID, StateRequested, err)
	}
	if _, err := db.SetTaskRequestedTx(tx, t.ID, true, s.store.Now()); err != nil {
		return transitionFailure(t.ID, StateRequested, err)
	}
	return nil
}

// activeProject picks the project of the most recently touched task, then
// story, then project. Fails with NO_PROJECTS when the store is empty.
func (s *Selector) activeProject(ctx context.Context) (string, error) {
	lookups := []func(context.Context) (string, error){
		s.store.LatestTaskProject,
		s.store.LatestStoryProject,
		s.store.LatestProject,
	}
	for _, lookup := range lookups {
		id, err := lookup(ctx)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", tqerrors.ErrNoProjects()
}

// actionable filters the queue to tasks that are neither paused nor finished.
func actionable(items []db.QueueItem) []*db.Task {
	var out []*db.Task
	for i := range items {
		t := &items[i].Task
		if !t.Paused && t.FinishedAt == nil {
			out = append(out, t)
		}
	}
	return out
}

// queuedMachine builds the machine for a queued task. Queue membership
// implies approval.
func queuedMachine(t *db.Task) (*TaskMachine, error) {
	state := StateOf(t)
	if state == StateUnapproved {
		state = StateApproved
		if t.FinishedAt != nil {
			state = StateFinished
		} else if t.RequestedAt != nil {
			state = StateRequested
		}
	}
	return newTaskMachine(t.ID, state, t.Paused)
}

func transitionFailure(taskID, state string, cause error) error {
	return &pollFailure{fmt.Sprintf(msgFailedTrans, taskID, state, cause)}
}

// PromptText is what the agent receives for a task: the prompt body, or
// the title and description when no body was written.
func PromptText(t *db.Task) string {
	if t.PromptBody != "" {
		return t.PromptBody
	}
	return t.Title + "\n\n" + t.Description
}
