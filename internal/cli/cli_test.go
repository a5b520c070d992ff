package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/taskq/internal/agent"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

// withTestDir changes into a fresh directory with an isolated HOME.
func withTestDir(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	tmpDir := t.TempDir()
	origWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() {
		_ = os.Chdir(origWd)
	})
	return tmpDir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, "taskq %s", strings.Join(args, " "))
	return out
}

// seedProject creates a project with one story and returns their IDs.
func seedProject(t *testing.T) (projectID, storyID string) {
	t.Helper()
	projectID = gjson.Get(mustRun(t, "project", "add", "alpha", "--json"), "id").String()
	require.NotEmpty(t, projectID)
	storyID = gjson.Get(mustRun(t, "story", "add", projectID, "Login", "--json"), "id").String()
	require.NotEmpty(t, storyID)
	return projectID, storyID
}

func addTask(t *testing.T, storyID, title string) string {
	t.Helper()
	id := gjson.Get(mustRun(t, "task", "add", storyID, title, "-d", title+" description", "--json"), "id").String()
	require.NotEmpty(t, id)
	return id
}

func queueIDs(t *testing.T, projectID string) []string {
	t.Helper()
	out := mustRun(t, "queue", "show", projectID, "--json")
	var ids []string
	for _, id := range gjson.Get(out, "#.task.id").Array() {
		ids = append(ids, id.String())
	}
	return ids
}

func TestInit(t *testing.T) {
	withTestDir(t)

	out := mustRun(t, "init")
	assert.Contains(t, out, "Initialized taskq")
	assert.FileExists(t, ".taskq/config.yaml")
	assert.FileExists(t, ".taskq/taskq.db")

	_, err := runCLI(t, "init")
	assert.Error(t, err, "second init without --force")
	mustRun(t, "init", "--force")
}

func TestCommandsRequireInit(t *testing.T) {
	withTestDir(t)

	_, err := runCLI(t, "project", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taskq init")
}

func TestQueueWorkflow(t *testing.T) {
	withTestDir(t)
	mustRun(t, "init")
	projectID, storyID := seedProject(t)
	t1 := addTask(t, storyID, "T1")
	t2 := addTask(t, storyID, "T2")

	assert.Empty(t, queueIDs(t, projectID))
	assert.Contains(t, mustRun(t, "queue", "show", projectID), "empty")

	assert.Contains(t, mustRun(t, "approve", t1), "approved")
	mustRun(t, "approve", t2)
	assert.Contains(t, mustRun(t, "approve", t1), "already approved")
	assert.Equal(t, []string{t1, t2}, queueIDs(t, projectID))

	out := mustRun(t, "queue", "show", projectID, "--json")
	assert.Equal(t, []any{float64(100), float64(200)}, gjson.Get(out, "#.position").Value())

	out = mustRun(t, "move", projectID, t2, "--top")
	assert.Contains(t, out, "moved to top")
	assert.Equal(t, []string{t2, t1}, queueIDs(t, projectID))

	out = mustRun(t, "move", projectID, t2, "--after", t1, "--json")
	assert.Equal(t, t2, gjson.Get(out, "task_id").String())
	assert.Equal(t, []string{t1, t2}, queueIDs(t, projectID))

	table := mustRun(t, "queue", "show", projectID)
	assert.Contains(t, table, "Queue of alpha (2 tasks)")
	assert.Less(t, strings.Index(table, "T1"), strings.Index(table, "T2"))

	out = mustRun(t, "queue", "renumber", projectID, "--json")
	assert.Equal(t, []any{float64(100), float64(200)}, gjson.Get(out, "#.position").Value())

	mustRun(t, "unapprove", t1)
	assert.Equal(t, []string{t2}, queueIDs(t, projectID))
}

func TestNext(t *testing.T) {
	withTestDir(t)
	mustRun(t, "init")

	assert.Equal(t, agent.MsgNoProjects+"\n", mustRun(t, "next"))

	_, storyID := seedProject(t)
	t1 := addTask(t, storyID, "T1")
	t2 := addTask(t, storyID, "T2")
	mustRun(t, "approve", t1)
	mustRun(t, "approve", t2)

	out := mustRun(t, "next")
	assert.Equal(t, "T1\n\nT1 description"+agent.ContinuationHint+"\n", out)

	out = mustRun(t, "next")
	assert.Equal(t, "T2\n\nT2 description\n", out)

	show := mustRun(t, "task", "show", t1, "--json")
	assert.Equal(t, agent.StateFinished, gjson.Get(show, "state").String())
	show = mustRun(t, "task", "show", t2, "--json")
	assert.Equal(t, agent.StateRequested, gjson.Get(show, "state").String())
	assert.Equal(t, int64(200), gjson.Get(show, "position").Int())
}

func TestTaskCommands(t *testing.T) {
	withTestDir(t)
	mustRun(t, "init")
	_, storyID := seedProject(t)
	t1 := addTask(t, storyID, "T1")

	list := mustRun(t, "task", "list", storyID, "--json")
	assert.Equal(t, t1, gjson.Get(list, "0.id").String())

	assert.Contains(t, mustRun(t, "task", "pause", t1), "paused")
	assert.Contains(t, mustRun(t, "task", "pause", t1), "already paused")
	assert.True(t, gjson.Get(mustRun(t, "task", "show", t1, "--json"), "paused").Bool())
	mustRun(t, "task", "resume", t1)

	show := mustRun(t, "task", "show", t1)
	assert.Contains(t, show, "T1 description")
	assert.Contains(t, show, agent.StateUnapproved)

	mustRun(t, "task", "delete", t1)
	_, err := runCLI(t, "task", "delete", t1)
	assert.True(t, tqerrors.HasCode(err, tqerrors.CodeNotFound), "err = %v", err)
	_, err = runCLI(t, "task", "show", t1)
	assert.True(t, tqerrors.HasCode(err, tqerrors.CodeNotFound), "err = %v", err)
}

func TestCommandErrors(t *testing.T) {
	withTestDir(t)
	mustRun(t, "init")
	projectID, storyID := seedProject(t)
	t1 := addTask(t, storyID, "T1")

	tests := []struct {
		name string
		args []string
		code tqerrors.Code
	}{
		{"story in unknown project", []string{"story", "add", "nope", "S"}, tqerrors.CodeNotFound},
		{"task in unknown story", []string{"task", "add", "nope", "T"}, tqerrors.CodeNotFound},
		{"approve unknown task", []string{"approve", "nope"}, tqerrors.CodeNotFound},
		{"move unqueued task", []string{"move", projectID, t1, "--top"}, tqerrors.CodeNotInQueue},
		{"move with two placements", []string{"move", projectID, t1, "--top", "--bottom"}, tqerrors.CodeInvalidOperation},
		{"move without placement", []string{"move", projectID, t1}, tqerrors.CodeInvalidOperation},
		{"queue of unknown project", []string{"queue", "show", "nope"}, tqerrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.True(t, tqerrors.HasCode(err, tt.code), "err = %v, want %s", err, tt.code)
		})
	}
}

func TestDBFlagOverridesConfig(t *testing.T) {
	withTestDir(t)

	mustRun(t, "init", "--db", "custom.db")
	assert.FileExists(t, "custom.db")

	mustRun(t, "project", "add", "beta", "--db", "custom.db")
	assert.Contains(t, mustRun(t, "project", "list", "--db", "custom.db"), "beta")

	out := mustRun(t, "config", "get", "database.path", "--source", "--db", "custom.db")
	assert.Equal(t, "custom.db (flag)\n", out)
}

func TestConfigCommands(t *testing.T) {
	withTestDir(t)

	assert.Equal(t, "8088 (default)\n", mustRun(t, "config", "get", "server.port", "--source"))

	t.Setenv("TASKQ_PORT", "9000")
	t.Setenv("TASKQ_DB_PASSWORD", "s3cret")
	assert.Equal(t, "9000 (env)\n", mustRun(t, "config", "get", "server.port", "--source"))
	assert.Equal(t, "****\n", mustRun(t, "config", "get", "database.postgres.password"))

	show := mustRun(t, "config", "show", "--source")
	assert.Contains(t, show, "server.port = 9000 (env)")
	assert.NotContains(t, show, "s3cret")

	yamlOut := mustRun(t, "config", "show")
	assert.Contains(t, yamlOut, "port: 9000")
	assert.NotContains(t, yamlOut, "s3cret")

	_, err := runCLI(t, "config", "get", "server.nope")
	assert.Error(t, err)
}
