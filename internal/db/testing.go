// Package db provides test utilities for database operations.
//
// This file contains test helpers that should be used by all tests
// requiring database access. Using these helpers ensures:
// - In-memory databases for speed
// - Proper cleanup via t.Cleanup()
// - Consistent patterns across the codebase
package db

import (
	"context"
	"sync"
	"testing"
	"time"
)

// NewTestStore creates an in-memory store for testing.
// The database is automatically closed when the test completes.
// Schema migrations are applied automatically.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel() // Always add for faster tests
//	    store := db.NewTestStore(t)
//	    // use store...
//	}
func NewTestStore(t testing.TB, opts ...Option) *Store {
	t.Helper()

	s, err := OpenStoreInMemory(opts...)
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// TestClock is a deterministic clock that advances by Step on every read.
// Pass its Now method to WithClock so successive writes get distinct,
// increasing timestamps.
type TestClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewTestClock returns a clock starting at 2024-01-01T00:00:00Z that
// advances one second per read.
func NewTestClock() *TestClock {
	return &TestClock{
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Step: time.Second,
	}
}

// Now returns the current reading and advances the clock.
func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Fixture holds a project with one story, the usual starting point for
// queue tests.
type Fixture struct {
	Store   *Store
	Project *Project
	Story   *UserStory
}

// NewTestFixture creates a store on a TestClock with one project and one story.
func NewTestFixture(t testing.TB) *Fixture {
	t.Helper()

	clock := NewTestClock()
	s := NewTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "alpha", "")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	us, err := s.CreateUserStory(ctx, p.ID, "story", "")
	if err != nil {
		t.Fatalf("create user story: %v", err)
	}
	return &Fixture{Store: s, Project: p, Story: us}
}

// AddTask creates a task under the fixture story.
func (f *Fixture) AddTask(t testing.TB, title string) *Task {
	t.Helper()

	task, err := f.Store.CreateTask(context.Background(), NewTask{
		UserStoryID: f.Story.ID,
		Title:       title,
		Description: title + " description",
	})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

// Enqueue inserts a queue entry directly at position, bypassing approval.
func (f *Fixture) Enqueue(t testing.TB, taskID string, position int64) {
	t.Helper()

	err := f.Store.RunInTx(context.Background(), func(tx *TxOps) error {
		_, err := InsertOrderedEntryTx(tx, f.Project.ID, taskID, position)
		return err
	})
	if err != nil {
		t.Fatalf("enqueue %s@%d: %v", taskID, position, err)
	}
}

// Positions returns task ID → position for the fixture project queue.
func (f *Fixture) Positions(t testing.TB) map[string]int64 {
	t.Helper()

	entries, err := f.Store.ListOrderedEntries(context.Background(), f.Project.ID)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		out[e.TaskID] = e.Position
	}
	return out
}

// Order returns the task IDs of the fixture project queue in position order.
func (f *Fixture) Order(t testing.TB) []string {
	t.Helper()

	entries, err := f.Store.ListOrderedEntries(context.Background(), f.Project.ID)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.TaskID
	}
	return ids
}
