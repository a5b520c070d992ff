package api

import "net/http"

// handleNextTask runs one step of the agent pull protocol. The response is
// always plain text, including failures.
func (s *Server) handleNextTask(w http.ResponseWriter, r *http.Request) {
	TextResponse(w, s.selector.PollNextTask(r.Context()))
}
