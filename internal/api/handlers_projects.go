package api

import (
	"net/http"

	"github.com/randalmurphal/taskq/internal/db"
)

// handleListProjects returns all projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.logger.Error("list projects", "error", err)
		JSONError(w, "failed to list projects", http.StatusInternalServerError)
		return
	}

	// Ensure we return an empty array, not null
	if projects == nil {
		projects = []db.Project{}
	}

	JSONResponse(w, projects)
}
