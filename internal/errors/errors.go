// Package errors defines the coded error type shared by the store, the
// queue operations and every outer surface. The code picks the HTTP status;
// What, Why and Fix make up the message shown to people.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies an error kind independent of its message.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeNotInQueue       Code = "NOT_IN_ORDERED_LIST"
	CodeNoProjects       Code = "NO_PROJECTS"
	CodeInvalidOperation Code = "INVALID_OPERATION"
	CodeUnexpected       Code = "UNEXPECTED"
	CodeConfigInvalid    Code = "CONFIG_INVALID"
)

var statusByCode = map[Code]int{
	CodeNotFound:         http.StatusNotFound,
	CodeNotInQueue:       http.StatusNotFound,
	CodeNoProjects:       http.StatusNotFound,
	CodeInvalidOperation: http.StatusBadRequest,
	CodeConfigInvalid:    http.StatusBadRequest,
	CodeUnexpected:       http.StatusInternalServerError,
}

// TaskqError is a coded error. Two TaskqErrors match under errors.Is when
// their codes are equal.
type TaskqError struct {
	Code  Code
	What  string
	Why   string
	Fix   string
	Cause error
}

func (e *TaskqError) Error() string {
	parts := []string{e.What}
	if e.Why != "" {
		parts = append(parts, e.Why)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *TaskqError) Unwrap() error { return e.Cause }

func (e *TaskqError) Is(target error) bool {
	t, ok := target.(*TaskqError)
	return ok && t.Code == e.Code
}

// UserMessage renders the error for a terminal: the headline, then the
// Why and Fix paragraphs when present. The cause is left out.
func (e *TaskqError) UserMessage() string {
	msg := "Error: " + e.What
	if e.Why != "" {
		msg += "\n\nWhy: " + e.Why
	}
	if e.Fix != "" {
		msg += "\n\nFix: " + e.Fix
	}
	return msg
}

// HTTPStatus maps the code to a status; unknown codes are 500.
func (e *TaskqError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (e *TaskqError) MarshalJSON() ([]byte, error) {
	wire := struct {
		Code  Code   `json:"code"`
		What  string `json:"what"`
		Why   string `json:"why,omitempty"`
		Fix   string `json:"fix,omitempty"`
		Cause string `json:"cause,omitempty"`
	}{Code: e.Code, What: e.What, Why: e.Why, Fix: e.Fix}
	if e.Cause != nil {
		wire.Cause = e.Cause.Error()
	}
	return json.Marshal(wire)
}

func ErrTaskNotFound(id string) *TaskqError {
	return &TaskqError{
		Code: CodeNotFound,
		What: fmt.Sprintf("Task with ID '%s' not found", id),
		Fix:  "Run 'taskq task show <id>' to check the identifier",
	}
}

func ErrProjectNotFound(id string) *TaskqError {
	return &TaskqError{
		Code: CodeNotFound,
		What: fmt.Sprintf("Project with ID '%s' not found", id),
		Fix:  "Run 'taskq project list' to see available projects",
	}
}

func ErrUserStoryNotFound(id string) *TaskqError {
	return &TaskqError{
		Code: CodeNotFound,
		What: fmt.Sprintf("User story with ID '%s' not found", id),
		Fix:  "Run 'taskq story list <project-id>' to see the stories of a project",
	}
}

// ErrNotInQueue reports a task with no entry in the ordered list it was
// looked up in.
func ErrNotInQueue(taskID string) *TaskqError {
	return &TaskqError{
		Code: CodeNotInQueue,
		What: fmt.Sprintf("Task with ID '%s' not in the ordered list", taskID),
		Fix:  "Approve the task for this project before reordering it",
	}
}

func ErrNoProjects() *TaskqError {
	return &TaskqError{
		Code: CodeNoProjects,
		What: "No projects found",
		Fix:  "Create one with 'taskq project add <name>'",
	}
}

// ErrInvalidOperation rejects a request that cannot be carried out as asked,
// such as an unknown placement or a move relative to the task itself.
func ErrInvalidOperation(what string) *TaskqError {
	return &TaskqError{Code: CodeInvalidOperation, What: what}
}

// ErrUnexpected wraps a persistence fault.
func ErrUnexpected(what string, cause error) *TaskqError {
	return &TaskqError{Code: CodeUnexpected, What: what, Cause: cause}
}

func ErrConfigInvalid(field, reason string) *TaskqError {
	return &TaskqError{
		Code: CodeConfigInvalid,
		What: "invalid configuration: " + field,
		Why:  reason,
		Fix:  "Check .taskq/config.yaml and fix the invalid field",
	}
}

// AsTaskqError returns the first TaskqError in err's chain, or nil.
func AsTaskqError(err error) *TaskqError {
	var te *TaskqError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

func HasCode(err error, code Code) bool {
	te := AsTaskqError(err)
	return te != nil && te.Code == code
}

// Wrap returns err unchanged when it already carries a TaskqError and
// otherwise wraps it as UNEXPECTED under what.
func Wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	if te := AsTaskqError(err); te != nil {
		return te
	}
	return ErrUnexpected(what, err)
}
