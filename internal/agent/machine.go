// Package agent serves the pull protocol an external AI agent uses to work
// through a project's queue one task at a time.
package agent

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/randalmurphal/taskq/internal/db"
)

// Task states. These stay untyped string constants for statekit.StateID.
const (
	StateUnapproved = "unapproved"
	StateApproved   = "approved"
	StateRequested  = "requested"
	StateFinished   = "finished"
)

// Events accepted by TaskMachine.
const (
	EventApprove   = "approve"
	EventUnapprove = "unapprove"
	EventRequest   = "request"
	EventFinish    = "finish"
)

// machineContext carries the flags guards look at.
type machineContext struct {
	TaskID string
	Paused bool
}

// TaskMachine tracks where one task is in the agent lifecycle. Paused is an
// orthogonal flag: it blocks the request edge but no other.
type TaskMachine struct {
	interpreter *statekit.Interpreter[machineContext]
}

// StateOf derives a task's lifecycle state from its timestamps.
func StateOf(t *db.Task) string {
	switch {
	case t.ApprovedAt == nil:
		return StateUnapproved
	case t.FinishedAt != nil:
		return StateFinished
	case t.RequestedAt != nil:
		return StateRequested
	default:
		return StateApproved
	}
}

// NewTaskMachine builds a machine for t starting in its current state.
func NewTaskMachine(t *db.Task) (*TaskMachine, error) {
	return newTaskMachine(t.ID, StateOf(t), t.Paused)
}

func newTaskMachine(taskID, initial string, paused bool) (*TaskMachine, error) {
	builder := statekit.NewMachine[machineContext]("task-agent").
		WithInitial(statekit.StateID(initial)).
		WithContext(machineContext{TaskID: taskID, Paused: paused}).
		WithGuard("notPaused", func(ctx machineContext, e statekit.Event) bool {
			return !ctx.Paused
		})

	builder.State(StateUnapproved).
		On(EventApprove).Target(StateApproved).
		Done()

	builder.State(StateApproved).
		On(EventRequest).Target(StateRequested).Guard("notPaused").
		On(EventUnapprove).Target(StateUnapproved).
		Done()

	builder.State(StateRequested).
		On(EventFinish).Target(StateFinished).
		On(EventUnapprove).Target(StateUnapproved).
		Done()

	builder.State(StateFinished).
		On(EventUnapprove).Target(StateUnapproved).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build task machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &TaskMachine{interpreter: interpreter}, nil
}

// Fire sends event and fails when the current state has no edge for it.
func (m *TaskMachine) Fire(event string) error {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.Current() != before {
		return nil
	}
	return fmt.Errorf("cannot %s a task in state '%s'", event, before)
}

// Current returns the current state.
func (m *TaskMachine) Current() string {
	return string(m.interpreter.State().Value)
}
