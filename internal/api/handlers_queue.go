package api

import (
	"net/http"

	"github.com/randalmurphal/taskq/internal/db"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
	"github.com/randalmurphal/taskq/internal/queue"
)

// moveRequest is the body of POST /api/projects/{id}/queue/move.
type moveRequest struct {
	TaskID    string `json:"task_id"`
	Placement string `json:"placement"`
	RefTaskID string `json:"ref_task_id,omitempty"`
	Position  int64  `json:"position,omitempty"`
}

// approvalRequest is the body of POST /api/tasks/{id}/approval.
type approvalRequest struct {
	Approved  bool   `json:"approved"`
	ProjectID string `json:"project_id,omitempty"`
}

// handleGetQueue returns a project queue in position order.
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.queue.List(r.Context(), r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	if items == nil {
		items = []db.QueueItem{}
	}
	JSONResponse(w, items)
}

// handleMoveTask repositions one task within a project queue.
func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}
	if req.TaskID == "" {
		HandleError(w, tqerrors.ErrInvalidOperation("task_id is required"))
		return
	}

	placement, err := queue.ParsePlacement(req.Placement, req.RefTaskID, req.Position)
	if err != nil {
		HandleError(w, err)
		return
	}

	entry, err := s.queue.Move(r.Context(), r.PathValue("id"), req.TaskID, placement)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, entry)
}

// handleRenumberQueue respaces a project queue.
func (s *Server) handleRenumberQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.queue.Renumber(r.Context(), r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	if entries == nil {
		entries = []db.OrderedEntry{}
	}
	JSONResponse(w, map[string]any{"entries": entries})
}

// handleSetApproval approves or unapproves a task.
func (s *Server) handleSetApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	changed, err := s.queue.SetApproval(r.Context(), r.PathValue("id"), req.Approved, req.ProjectID)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]bool{"changed": changed})
}
