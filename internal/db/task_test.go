package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

func TestProjectsAndStories(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t, WithClock(NewTestClock().Now))
	ctx := context.Background()

	p1, err := s.CreateProject(ctx, "alpha", "first")
	require.NoError(t, err)
	p2, err := s.CreateProject(ctx, "beta", "")
	require.NoError(t, err)

	got, err := s.GetProject(ctx, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alpha", got.Name)
	assert.Equal(t, "first", got.Description)

	missing, err := s.GetProject(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p2.ID, list[0].ID, "most recently updated first")

	us, err := s.CreateUserStory(ctx, p1.ID, "story", "desc")
	require.NoError(t, err)
	exists, err := s.UserStoryExists(ctx, us.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	stories, err := s.ListUserStories(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "story", stories[0].Title)

	_, err = s.CreateUserStory(ctx, "nope", "orphan", "")
	require.Error(t, err)
	assert.True(t, tqerrors.HasCode(err, tqerrors.CodeNotFound))
	assert.Contains(t, err.Error(), "nope")
}

func TestCreateTask(t *testing.T) {
	t.Parallel()
	f := NewTestFixture(t)
	ctx := context.Background()

	task, err := f.Store.CreateTask(ctx, NewTask{
		UserStoryID: f.Story.ID,
		Title:       "Write parser",
		Description: "tokens",
		PromptBody:  "do it",
	})
	require.NoError(t, err)

	got, err := f.Store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Write parser", got.Title)
	assert.Equal(t, "do it", got.PromptBody)
	assert.False(t, got.Paused)
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.RequestedAt)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, got.CreatedAt.Equal(task.CreatedAt))

	tasks, err := f.Store.GetTasksByUserStory(ctx, f.Story.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	_, err = f.Store.CreateTask(ctx, NewTask{UserStoryID: "missing", Title: "x"})
	require.Error(t, err)
	assert.True(t, tqerrors.HasCode(err, tqerrors.CodeNotFound))
}

func TestTaskSetters_DetectNoOps(t *testing.T) {
	t.Parallel()
	f := NewTestFixture(t)
	ctx := context.Background()
	task := f.AddTask(t, "T1")

	set := func(fn func(*TxOps) (bool, error)) bool {
		t.Helper()
		var changed bool
		err := f.Store.RunInTx(ctx, func(tx *TxOps) error {
			var err error
			changed, err = fn(tx)
			return err
		})
		require.NoError(t, err)
		return changed
	}
	reload := func() *Task {
		t.Helper()
		got, err := f.Store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		return got
	}

	at := f.Store.Now()
	assert.True(t, set(func(tx *TxOps) (bool, error) { return SetTaskApprovedTx(tx, task.ID, true, at) }))
	first := reload()
	require.NotNil(t, first.ApprovedAt)
	assert.True(t, first.ApprovedAt.Equal(at))
	assert.True(t, first.UpdatedAt.Equal(at))

	// Second approve changes nothing, including updated_at.
	later := f.Store.Now()
	assert.False(t, set(func(tx *TxOps) (bool, error) { return SetTaskApprovedTx(tx, task.ID, true, later) }))
	second := reload()
	assert.True(t, second.ApprovedAt.Equal(at))
	assert.True(t, second.UpdatedAt.Equal(first.UpdatedAt))

	assert.True(t, set(func(tx *TxOps) (bool, error) { return SetTaskRequestedTx(tx, task.ID, true, later) }))
	assert.True(t, set(func(tx *TxOps) (bool, error) { return SetTaskFinishedTx(tx, task.ID, true, later) }))
	assert.False(t, set(func(tx *TxOps) (bool, error) { return SetTaskFinishedTx(tx, task.ID, true, later) }))
	assert.True(t, set(func(tx *TxOps) (bool, error) { return SetTaskApprovedTx(tx, task.ID, false, later) }))

	got := reload()
	assert.Nil(t, got.ApprovedAt)
	assert.NotNil(t, got.RequestedAt)
	assert.NotNil(t, got.FinishedAt)

	changed, err := f.Store.SetTaskPaused(ctx, task.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.Store.SetTaskPaused(ctx, task.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, reload().Paused)

	_, err = f.Store.SetTaskPaused(ctx, "missing", true)
	require.Error(t, err)
	assert.True(t, tqerrors.HasCode(err, tqerrors.CodeNotFound))
	assert.Contains(t, err.Error(), "Task with ID 'missing' not found")
}

func TestDeleteTask_RemovesQueueEntry(t *testing.T) {
	t.Parallel()
	f := NewTestFixture(t)
	ctx := context.Background()
	t1 := f.AddTask(t, "T1")
	t2 := f.AddTask(t, "T2")
	f.Enqueue(t, t1.ID, 100)
	f.Enqueue(t, t2.ID, 200)

	deleted, err := f.Store.DeleteTask(ctx, t1.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{t2.ID}, f.Order(t))

	deleted, err = f.Store.DeleteTask(ctx, t1.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTaskProjectIDTx(t *testing.T) {
	t.Parallel()
	f := NewTestFixture(t)
	task := f.AddTask(t, "T1")

	err := f.Store.RunInTx(context.Background(), func(tx *TxOps) error {
		pid, err := TaskProjectIDTx(tx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, f.Project.ID, pid)

		pid, err = TaskProjectIDTx(tx, "missing")
		require.NoError(t, err)
		assert.Empty(t, pid)
		return nil
	})
	require.NoError(t, err)
}

func TestLatestProjectQueries(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t, WithClock(NewTestClock().Now))
	ctx := context.Background()

	id, err := s.LatestProject(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	pa, err := s.CreateProject(ctx, "a", "")
	require.NoError(t, err)
	pb, err := s.CreateProject(ctx, "b", "")
	require.NoError(t, err)

	id, err = s.LatestProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, pb.ID, id)

	id, err = s.LatestStoryProject(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	usA, err := s.CreateUserStory(ctx, pa.ID, "sa", "")
	require.NoError(t, err)
	id, err = s.LatestStoryProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, pa.ID, id)

	id, err = s.LatestTaskProject(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	usB, err := s.CreateUserStory(ctx, pb.ID, "sb", "")
	require.NoError(t, err)
	tb, err := s.CreateTask(ctx, NewTask{UserStoryID: usB.ID, Title: "tb"})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, NewTask{UserStoryID: usA.ID, Title: "ta"})
	require.NoError(t, err)

	id, err = s.LatestTaskProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, pa.ID, id)

	// Touching a task moves the active project with it.
	_, err = s.SetTaskPaused(ctx, tb.ID, true)
	require.NoError(t, err)
	id, err = s.LatestTaskProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, pb.ID, id)
}
