package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

// Task represents a task stored in the database.
//
// Approval, request and finish are independent nullable timestamps rather
// than a single status; each is toggled on its own by the Set*Tx setters.
type Task struct {
	ID          string     `json:"id"`
	UserStoryID string     `json:"user_story_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PromptBody  string     `json:"prompt_body,omitempty"`
	Paused      bool       `json:"paused"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsApproved reports whether the task carries an approval timestamp.
func (t *Task) IsApproved() bool { return t.ApprovedAt != nil }

// IsRequested reports whether the agent has pulled the task.
func (t *Task) IsRequested() bool { return t.RequestedAt != nil }

// IsFinished reports whether the agent has finished the task.
func (t *Task) IsFinished() bool { return t.FinishedAt != nil }

// NewTask holds the fields needed to create a task.
type NewTask struct {
	UserStoryID string
	Title       string
	Description string
	PromptBody  string
}

// taskColumns selects every task column from a table aliased as t.
const taskColumns = `t.id, t.user_story_id, t.title, t.description, t.prompt_body, t.paused,
	t.approved_at, t.requested_at, t.finished_at, t.created_at, t.updated_at`

// Timestamp columns toggled by setTaskTimestampTx.
const (
	colApprovedAt  = "approved_at"
	colRequestedAt = "requested_at"
	colFinishedAt  = "finished_at"
)

// CreateTask inserts a task under an existing user story.
func (s *Store) CreateTask(ctx context.Context, in NewTask) (*Task, error) {
	exists, err := s.UserStoryExists(ctx, in.UserStoryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, tqerrors.ErrUserStoryNotFound(in.UserStoryID)
	}

	now := s.Now()
	t := &Task{
		ID:          uuid.NewString(),
		UserStoryID: in.UserStoryID,
		Title:       in.Title,
		Description: in.Description,
		PromptBody:  in.PromptBody,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.ExecContext(ctx, `
		INSERT INTO tasks (id, user_story_id, title, description, prompt_body, paused, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, t.ID, t.UserStoryID, t.Title, t.Description, t.PromptBody, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by ID. Returns nil, nil when it doesn't exist.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks t WHERE t.id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// GetTaskTx retrieves a task within a transaction. Returns nil, nil when it
// doesn't exist.
func GetTaskTx(tx *TxOps, id string) (*Task, error) {
	row := tx.QueryRow("SELECT "+taskColumns+" FROM tasks t WHERE t.id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// TaskExists reports whether a task with the given ID exists.
func (s *Store) TaskExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("check task %s: %w", id, err)
	}
	return n > 0, nil
}

func taskExistsTx(tx *TxOps, id string) (bool, error) {
	var n int
	if err := tx.QueryRow("SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("check task %s: %w", id, err)
	}
	return n > 0, nil
}

// GetTasksByUserStory returns the tasks of a story in creation order.
func (s *Store) GetTasksByUserStory(ctx context.Context, storyID string) ([]Task, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.user_story_id = ?
		ORDER BY t.created_at ASC, t.id ASC
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list tasks for story %s: %w", storyID, err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task together with every queue entry that references it.
// Returns false when the task did not exist.
func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.RunInTx(ctx, func(tx *TxOps) error {
		if _, err := tx.Exec("DELETE FROM ordered_tasks WHERE task_id = ?", id); err != nil {
			return fmt.Errorf("delete queue entries: %w", err)
		}
		res, err := tx.Exec("DELETE FROM tasks WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// TaskProjectIDTx resolves the project a task belongs to through its story.
// Returns "" when the task doesn't exist.
func TaskProjectIDTx(tx *TxOps, taskID string) (string, error) {
	var projectID string
	err := tx.QueryRow(`
		SELECT s.project_id
		FROM tasks t JOIN user_stories s ON s.id = t.user_story_id
		WHERE t.id = ?
	`, taskID).Scan(&projectID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve project for task %s: %w", taskID, err)
	}
	return projectID, nil
}

// SetTaskApprovedTx sets or clears approved_at. It reports whether the value
// changed; updated_at is only bumped on a change.
func SetTaskApprovedTx(tx *TxOps, taskID string, approved bool, at time.Time) (bool, error) {
	return setTaskTimestampTx(tx, taskID, colApprovedAt, approved, at)
}

// SetTaskRequestedTx sets or clears requested_at with the same no-op detection.
func SetTaskRequestedTx(tx *TxOps, taskID string, requested bool, at time.Time) (bool, error) {
	return setTaskTimestampTx(tx, taskID, colRequestedAt, requested, at)
}

// SetTaskFinishedTx sets or clears finished_at with the same no-op detection.
func SetTaskFinishedTx(tx *TxOps, taskID string, finished bool, at time.Time) (bool, error) {
	return setTaskTimestampTx(tx, taskID, colFinishedAt, finished, at)
}

// SetTaskPausedTx sets the paused flag with the same no-op detection.
func SetTaskPausedTx(tx *TxOps, taskID string, paused bool, at time.Time) (bool, error) {
	v := boolToInt(paused)
	res, err := tx.Exec(`
		UPDATE tasks SET paused = ?, updated_at = ?
		WHERE id = ? AND paused <> ?
	`, v, formatTime(at), taskID, v)
	if err != nil {
		return false, fmt.Errorf("set task %s paused: %w", taskID, err)
	}
	return changedOrMissing(tx, res, taskID)
}

// SetTaskPaused is the standalone form of SetTaskPausedTx.
func (s *Store) SetTaskPaused(ctx context.Context, taskID string, paused bool) (bool, error) {
	var changed bool
	err := s.RunInTx(ctx, func(tx *TxOps) error {
		var err error
		changed, err = SetTaskPausedTx(tx, taskID, paused, s.Now())
		return err
	})
	return changed, err
}

// setTaskTimestampTx stamps column with at (set) or clears it (!set). The
// WHERE clause only matches rows whose nullness differs, so an update that
// would not change anything touches nothing.
func setTaskTimestampTx(tx *TxOps, taskID, column string, set bool, at time.Time) (bool, error) {
	var res sql.Result
	var err error
	if set {
		res, err = tx.Exec(fmt.Sprintf(`
			UPDATE tasks SET %s = ?, updated_at = ?
			WHERE id = ? AND %s IS NULL
		`, column, column), formatTime(at), formatTime(at), taskID)
	} else {
		res, err = tx.Exec(fmt.Sprintf(`
			UPDATE tasks SET %s = NULL, updated_at = ?
			WHERE id = ? AND %s IS NOT NULL
		`, column, column), formatTime(at), taskID)
	}
	if err != nil {
		return false, fmt.Errorf("set task %s %s: %w", taskID, column, err)
	}
	return changedOrMissing(tx, res, taskID)
}

// changedOrMissing turns an UPDATE result into (changed, err), telling a
// no-op apart from a missing task.
func changedOrMissing(tx *TxOps, res sql.Result, taskID string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	exists, err := taskExistsTx(tx, taskID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, tqerrors.ErrTaskNotFound(taskID)
	}
	return false, nil
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var paused int
	var approvedAt, requestedAt, finishedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&t.ID, &t.UserStoryID, &t.Title, &t.Description, &t.PromptBody, &paused,
		&approvedAt, &requestedAt, &finishedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Paused = paused != 0
	t.ApprovedAt = parseNullableTime(approvedAt)
	t.RequestedAt = parseNullableTime(requestedAt)
	t.FinishedAt = parseNullableTime(finishedAt)
	t.CreatedAt = parseTimestamp(createdAt)
	t.UpdatedAt = parseTimestamp(updatedAt)
	return &t, nil
}
