package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/taskq/internal/agent"
	"github.com/randalmurphal/taskq/internal/db"
)

func newTestServer(t *testing.T) (*Server, *db.Fixture) {
	t.Helper()
	f := db.NewTestFixture(t)
	s := New(&Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, f.Store)
	return s, f
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func approve(t *testing.T, s *Server, taskID string) {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/tasks/"+taskID+"/approval", `{"approved": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func queueOrder(t *testing.T, s *Server, projectID string) []string {
	t.Helper()
	w := do(t, s, http.MethodGet, "/api/projects/"+projectID+"/queue", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ids []string
	for _, id := range gjson.Get(w.Body.String(), "#.task.id").Array() {
		ids = append(ids, id.String())
	}
	return ids
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListProjects(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "#").Int())
	assert.Equal(t, f.Project.ID, gjson.Get(body, "0.id").String())
	assert.Equal(t, "alpha", gjson.Get(body, "0.name").String())
}

func TestSetApproval(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)
	t1 := f.AddTask(t, "T1")

	w := do(t, s, http.MethodPost, "/api/tasks/"+t1.ID+"/approval", `{"approved": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, gjson.Get(w.Body.String(), "changed").Bool())

	w = do(t, s, http.MethodPost, "/api/tasks/"+t1.ID+"/approval", `{"approved": true, "project_id": "`+f.Project.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, gjson.Get(w.Body.String(), "changed").Bool())

	w = do(t, s, http.MethodGet, "/api/projects/"+f.Project.ID+"/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "#").Int())
	assert.Equal(t, int64(100), gjson.Get(body, "0.position").Int())
	assert.Equal(t, t1.ID, gjson.Get(body, "0.task.id").String())

	w = do(t, s, http.MethodPost, "/api/tasks/"+t1.ID+"/approval", `{"approved": false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "changed").Bool())
	assert.Empty(t, queueOrder(t, s, f.Project.ID))
}

func TestSetApproval_Errors(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)
	t1 := f.AddTask(t, "T1")

	w := do(t, s, http.MethodPost, "/api/tasks/missing/approval", `{"approved": true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", gjson.Get(w.Body.String(), "code").String())
	assert.Contains(t, gjson.Get(w.Body.String(), "error").String(), "missing")

	w = do(t, s, http.MethodPost, "/api/tasks/"+t1.ID+"/approval", `{"approved": true, "project_id": "nope"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "error").String(), "nope")

	w = do(t, s, http.MethodPost, "/api/tasks/"+t1.ID+"/approval", `{"approved": "yes"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_OPERATION", gjson.Get(w.Body.String(), "code").String())
}

func TestMoveTask(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)
	t1, t2, t3 := f.AddTask(t, "T1"), f.AddTask(t, "T2"), f.AddTask(t, "T3")
	for _, task := range []*db.Task{t1, t2, t3} {
		approve(t, s, task.ID)
	}
	path := "/api/projects/" + f.Project.ID + "/queue/move"

	w := do(t, s, http.MethodPost, path, `{"task_id": "`+t3.ID+`", "placement": "top"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, t3.ID, gjson.Get(w.Body.String(), "task_id").String())
	assert.Equal(t, []string{t3.ID, t1.ID, t2.ID}, queueOrder(t, s, f.Project.ID))

	w = do(t, s, http.MethodPost, path, `{"task_id": "`+t3.ID+`", "placement": "after", "ref_task_id": "`+t2.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{t1.ID, t2.ID, t3.ID}, queueOrder(t, s, f.Project.ID))

	w = do(t, s, http.MethodPost, path, `{"task_id": "`+t1.ID+`", "placement": "position", "position": 250}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(250), gjson.Get(w.Body.String(), "position").Int())
	assert.Equal(t, []string{t2.ID, t1.ID, t3.ID}, queueOrder(t, s, f.Project.ID))
}

func TestMoveTask_Errors(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)
	t1 := f.AddTask(t, "T1")
	t2 := f.AddTask(t, "T2")
	approve(t, s, t1.ID)
	path := "/api/projects/" + f.Project.ID + "/queue/move"

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"not in queue", path, `{"task_id": "` + t2.ID + `", "placement": "top"}`, http.StatusNotFound, "NOT_IN_ORDERED_LIST"},
		{"unknown placement", path, `{"task_id": "` + t1.ID + `", "placement": "sideways"}`, http.StatusBadRequest, "INVALID_OPERATION"},
		{"missing task id", path, `{"placement": "top"}`, http.StatusBadRequest, "INVALID_OPERATION"},
		{"before self", path, `{"task_id": "` + t1.ID + `", "placement": "before", "ref_task_id": "` + t1.ID + `"}`, http.StatusBadRequest, "INVALID_OPERATION"},
		{"ref not in queue", path, `{"task_id": "` + t1.ID + `", "placement": "after", "ref_task_id": "` + t2.ID + `"}`, http.StatusNotFound, "NOT_IN_ORDERED_LIST"},
		{"unknown project", "/api/projects/nope/queue/move", `{"task_id": "` + t1.ID + `", "placement": "top"}`, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, gjson.Get(w.Body.String(), "code").String())
		})
	}
}

func TestRenumberQueue(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)
	t1, t2 := f.AddTask(t, "T1"), f.AddTask(t, "T2")
	f.Enqueue(t, t1.ID, 7)
	f.Enqueue(t, t2.ID, 9)

	w := do(t, s, http.MethodPost, "/api/projects/"+f.Project.ID+"/queue/renumber", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, []any{float64(100), float64(200)}, gjson.Get(body, "entries.#.position").Value())
	assert.Equal(t, t1.ID, gjson.Get(body, "entries.0.task_id").String())
}

func TestGetQueue_UnknownProject(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/projects/nope/queue", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "error").String(), "nope")
}

func TestGetQueue_EmptyIsArray(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/projects/"+f.Project.ID+"/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestNextTask(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)
	t1 := f.AddTask(t, "T1")
	approve(t, s, t1.ID)

	w := do(t, s, http.MethodPost, "/api/agent/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "T1\n\nT1 description"+agent.ContinuationHint, w.Body.String())

	got, err := f.Store.GetTask(context.Background(), t1.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRequested())

	w = do(t, s, http.MethodPost, "/api/agent/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "finished")
	assert.NotContains(t, w.Body.String(), agent.ContinuationHint)
}

func TestNextTask_NoProjects(t *testing.T) {
	t.Parallel()
	s := New(&Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, db.NewTestStore(t))

	w := do(t, s, http.MethodPost, "/api/agent/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, agent.MsgNoProjects, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	s, f := newTestServer(t)

	w := do(t, s, http.MethodOptions, "/api/projects/"+f.Project.ID+"/queue/move", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
