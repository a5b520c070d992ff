// Package mcp exposes the agent pull protocol and the queue operations as
// MCP tools. Every tool answers with a descriptive string, failures
// included, so an agent loop can show the result as is.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/randalmurphal/taskq/internal/agent"
	"github.com/randalmurphal/taskq/internal/db"
	"github.com/randalmurphal/taskq/internal/events"
	"github.com/randalmurphal/taskq/internal/queue"
)

// Version is reported to MCP clients; set at build time.
var Version = "dev"

// Server wraps the MCP server and the services its tools call.
type Server struct {
	mcpServer *mcp.Server
	store     *db.Store
	queue     *queue.Service
	selector  *agent.Selector
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	publisher events.Publisher
	logger    *slog.Logger
}

// WithPublisher sets the publisher that receives queue events.
func WithPublisher(p events.Publisher) Option {
	return func(o *serverOptions) { o.publisher = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// NewServer creates the MCP server over store and registers its tools.
func NewServer(store *db.Store, opts ...Option) *Server {
	o := serverOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	info := mcp.ServerInfo{
		Name:    "taskq",
		Version: Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("taskq"),
			mcp.WithDescription("taskq hands out a curated, ordered queue of approved tasks one at a time."),
			mcp.WithInstructions("Call next_task to receive the next approved task. Call it again when the task is done to mark it finished and get the one after."),
		),
		store:    store,
		queue:    queue.NewService(store, queue.WithPublisher(o.publisher), queue.WithLogger(o.logger)),
		selector: agent.NewSelector(store, agent.WithPublisher(o.publisher), agent.WithLogger(o.logger)),
		logger:   o.logger,
	}
	s.registerTools()
	return s
}

// ApproveTaskArgs are the arguments of approve_task.
type ApproveTaskArgs struct {
	TaskID    string   `json:"task_id" jsonschema:"description=The ID of the task to approve"`
	ProjectID string   `json:"project_id,omitempty" jsonschema:"description=Project whose queue to change (defaults to the task's own project)"`
	Unapprove FlexBool `json:"unapprove,omitempty" jsonschema:"description=Remove the approval and take the task out of the queue"`
}

// MoveTaskArgs are the arguments of move_task.
type MoveTaskArgs struct {
	ProjectID string  `json:"project_id" jsonschema:"description=The project whose queue to reorder"`
	TaskID    string  `json:"task_id" jsonschema:"description=The ID of the task to move"`
	Placement string  `json:"placement" jsonschema:"description=Where to put the task: top, bottom, before, after or position"`
	RefTaskID string  `json:"ref_task_id,omitempty" jsonschema:"description=Reference task for before and after"`
	Position  FlexInt `json:"position,omitempty" jsonschema:"description=Absolute position for placement=position"`
}

// ListQueueArgs are the arguments of list_queue.
type ListQueueArgs struct {
	ProjectID string `json:"project_id" jsonschema:"description=The project whose queue to list"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("next_task").
		Description("Receive the next approved task. Calling again marks the current task finished and hands out the following one.").
		Handler(s.handleNextTask)

	s.mcpServer.Tool("approve_task").
		Description("Approve a task so it is appended to its project queue, or unapprove it to remove it").
		Handler(s.handleApproveTask)

	s.mcpServer.Tool("move_task").
		Description("Reorder a queued task: top, bottom, before/after another task, or at an absolute position").
		Handler(s.handleMoveTask)

	s.mcpServer.Tool("list_queue").
		Description("List a project queue in order with the state of each task").
		Handler(s.handleListQueue)
}

func (s *Server) handleNextTask(ctx context.Context, args struct{}) (string, error) {
	return s.selector.PollNextTask(ctx), nil
}

func (s *Server) handleApproveTask(ctx context.Context, args ApproveTaskArgs) (string, error) {
	if args.TaskID == "" {
		return "Failed to change approval: task_id is required.", nil
	}
	approve := !bool(args.Unapprove)
	verb := "approve"
	if !approve {
		verb = "unapprove"
	}

	changed, err := s.queue.SetApproval(ctx, args.TaskID, approve, args.ProjectID)
	if err != nil {
		return fmt.Sprintf("Failed to %s task '%s': %v", verb, args.TaskID, err), nil
	}
	if !changed {
		return fmt.Sprintf("Task '%s' was already %sd. Nothing changed.", args.TaskID, verb), nil
	}
	return fmt.Sprintf("Task '%s' %sd.", args.TaskID, verb), nil
}

func (s *Server) handleMoveTask(ctx context.Context, args MoveTaskArgs) (string, error) {
	if args.ProjectID == "" || args.TaskID == "" {
		return "Failed to move task: project_id and task_id are required.", nil
	}
	p, err := queue.ParsePlacement(args.Placement, args.RefTaskID, int64(args.Position))
	if err != nil {
		return fmt.Sprintf("Failed to move task '%s': %v", args.TaskID, err), nil
	}

	entry, err := s.queue.Move(ctx, args.ProjectID, args.TaskID, p)
	if err != nil {
		return fmt.Sprintf("Failed to move task '%s': %v", args.TaskID, err), nil
	}
	return fmt.Sprintf("Task '%s' moved to %s (position %d).", args.TaskID, p, entry.Position), nil
}

func (s *Server) handleListQueue(ctx context.Context, args ListQueueArgs) (string, error) {
	if args.ProjectID == "" {
		return "Failed to list queue: project_id is required.", nil
	}
	items, err := s.queue.List(ctx, args.ProjectID)
	if err != nil {
		return fmt.Sprintf("Failed to list queue for project '%s': %v", args.ProjectID, err), nil
	}
	if len(items) == 0 {
		return fmt.Sprintf("The queue of project '%s' is empty.", args.ProjectID), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Queue of project '%s' (%d tasks):\n", args.ProjectID, len(items))
	for i, item := range items {
		state := agent.StateOf(&item.Task)
		if item.Task.Paused {
			state += ", paused"
		}
		fmt.Fprintf(&b, "%d. %s [%s] (id %s, position %d)\n", i+1, item.Task.Title, state, item.Task.ID, item.Position)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP serves MCP over HTTP on addr until ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

// FlexBool accepts both boolean and string ("true"/"false") JSON values.
// MCP clients sometimes send string values for boolean fields.
type FlexBool bool

func (fb *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*fb = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fb = FlexBool(s == "true" || s == "1" || s == "yes")
		return nil
	}
	return fmt.Errorf("expected boolean or string, got %s", string(data))
}

// FlexInt accepts both integer and string JSON values.
type FlexInt int64

func (fi *FlexInt) UnmarshalJSON(data []byte) error {
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*fi = FlexInt(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		var n int64
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
			*fi = FlexInt(n)
			return nil
		}
	}
	return fmt.Errorf("expected integer or string, got %s", string(data))
}
