// Package api provides the REST API and websocket server for taskq.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

// APIError is the standard error response format.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Fix   string `json:"fix,omitempty"`
}

// JSONResponse writes a successful JSON response.
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// JSONResponseStatus writes a JSON response with a specific status code.
func JSONResponseStatus(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JSONError writes a simple error response.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{Error: message})
}

// HandleError inspects error type and writes appropriate response.
func HandleError(w http.ResponseWriter, err error) {
	var tqErr *tqerrors.TaskqError
	if errors.As(err, &tqErr) {
		JSONResponseStatus(w, APIError{
			Error: tqErr.Error(),
			Code:  string(tqErr.Code),
			Fix:   tqErr.Fix,
		}, tqErr.HTTPStatus())
		return
	}
	// Fallback for unknown errors
	JSONError(w, err.Error(), http.StatusInternalServerError)
}

// TextResponse writes a plain text response.
func TextResponse(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return tqerrors.ErrInvalidOperation("invalid request body: " + err.Error())
	}
	return nil
}
