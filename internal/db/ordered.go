package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
)

// PositionGap is the spacing between neighbouring entries after an append
// or a renumber.
const PositionGap int64 = 100

// MaxPosition is the highest position an entry may hold. Appends and shifts
// that would pass it renumber the queue first, which keeps position
// arithmetic and the sign flip in ShiftPositionsTx clear of int64 overflow.
const MaxPosition int64 = math.MaxInt64 / 2

// OrderedEntry places one approved task in its project's queue. Only the
// relative order of positions within a project is meaningful.
type OrderedEntry struct {
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
	Position  int64  `json:"position"`
}

// QueueItem is a queue entry joined with the state of its task.
type QueueItem struct {
	Position int64 `json:"position"`
	Task     Task  `json:"task"`
}

// GetOrderedEntryTx returns the task's entry in the project queue, or nil, nil
// when it has none.
func GetOrderedEntryTx(tx *TxOps, projectID, taskID string) (*OrderedEntry, error) {
	e := OrderedEntry{ProjectID: projectID, TaskID: taskID}
	err := tx.QueryRow(`
		SELECT position FROM ordered_tasks
		WHERE project_id = ? AND task_id = ?
	`, projectID, taskID).Scan(&e.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry %s/%s: %w", projectID, taskID, err)
	}
	return &e, nil
}

// ListOrderedEntries returns the project queue in position order.
func (s *Store) ListOrderedEntries(ctx context.Context, projectID string) ([]OrderedEntry, error) {
	var entries []OrderedEntry
	err := s.RunInTx(ctx, func(tx *TxOps) error {
		var err error
		entries, err = ListOrderedEntriesTx(tx, projectID)
		return err
	})
	return entries, err
}

// ListOrderedEntriesTx returns the project queue in position order. The rows
// are fully drained before returning.
func ListOrderedEntriesTx(tx *TxOps, projectID string) ([]OrderedEntry, error) {
	rows, err := tx.Query(`
		SELECT task_id, position FROM ordered_tasks
		WHERE project_id = ?
		ORDER BY position ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list queue entries %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []OrderedEntry
	for rows.Next() {
		e := OrderedEntry{ProjectID: projectID}
		if err := rows.Scan(&e.TaskID, &e.Position); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MaxPositionTx returns the highest position in the project queue, or 0 when
// the queue is empty.
func MaxPositionTx(tx *TxOps, projectID string) (int64, error) {
	var maxPos int64
	err := tx.QueryRow(`
		SELECT COALESCE(MAX(position), 0) FROM ordered_tasks WHERE project_id = ?
	`, projectID).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("max queue position %s: %w", projectID, err)
	}
	return maxPos, nil
}

// EnsureHeadroomTx renumbers the project queue when raising its highest
// position by need would pass MaxPosition. Reports whether it renumbered.
func EnsureHeadroomTx(tx *TxOps, projectID string, need int64) (bool, error) {
	maxPos, err := MaxPositionTx(tx, projectID)
	if err != nil {
		return false, err
	}
	if maxPos <= MaxPosition-need {
		return false, nil
	}
	if err := RenumberTx(tx, projectID); err != nil {
		return false, err
	}
	return true, nil
}

// InsertOrderedEntryTx adds the task to the project queue at position. An
// existing entry for the task is left alone; the return value reports whether
// a row was inserted.
func InsertOrderedEntryTx(tx *TxOps, projectID, taskID string, position int64) (bool, error) {
	res, err := tx.Exec(`
		INSERT INTO ordered_tasks (project_id, task_id, position)
		VALUES (?, ?, ?)
		ON CONFLICT (project_id, task_id) DO NOTHING
	`, projectID, taskID, position)
	if err != nil {
		return false, fmt.Errorf("insert queue entry %s/%s: %w", projectID, taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteOrderedEntryTx removes the task from the project queue. Returns false
// when there was no entry.
func DeleteOrderedEntryTx(tx *TxOps, projectID, taskID string) (bool, error) {
	res, err := tx.Exec(`
		DELETE FROM ordered_tasks WHERE project_id = ? AND task_id = ?
	`, projectID, taskID)
	if err != nil {
		return false, fmt.Errorf("delete queue entry %s/%s: %w", projectID, taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetPositionTx moves an existing entry to position. The caller guarantees the
// position is free.
func SetPositionTx(tx *TxOps, projectID, taskID string, position int64) error {
	_, err := tx.Exec(`
		UPDATE ordered_tasks SET position = ?
		WHERE project_id = ? AND task_id = ?
	`, position, projectID, taskID)
	if err != nil {
		return fmt.Errorf("set queue position %s/%s: %w", projectID, taskID, err)
	}
	return nil
}

// PositionTakenTx reports whether an entry other than excludeTaskID holds
// position in the project queue.
func PositionTakenTx(tx *TxOps, projectID string, position int64, excludeTaskID string) (bool, error) {
	var n int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM ordered_tasks
		WHERE project_id = ? AND position = ? AND task_id <> ?
	`, projectID, position, excludeTaskID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check queue position %s@%d: %w", projectID, position, err)
	}
	return n > 0, nil
}

// ShiftPositionsTx adds delta to every entry at or above from, except
// excludeTaskID, and returns how many entries moved.
//
// The rows are first moved to the negative range and then flipped back, so
// the per-row unique check on (project_id, position) never sees two rows on
// the same value midway through the update. Real positions are always >= 1.
func ShiftPositionsTx(tx *TxOps, projectID string, from, delta int64, excludeTaskID string) (int64, error) {
	res, err := tx.Exec(`
		UPDATE ordered_tasks SET position = -(position + ?)
		WHERE project_id = ? AND position >= ? AND task_id <> ?
	`, delta, projectID, from, excludeTaskID)
	if err != nil {
		return 0, fmt.Errorf("shift queue %s from %d: %w", projectID, from, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := restoreNegatedTx(tx, projectID); err != nil {
		return 0, err
	}
	return n, nil
}

// RenumberTx reassigns positions 100, 200, 300, ... in current order.
func RenumberTx(tx *TxOps, projectID string) error {
	entries, err := ListOrderedEntriesTx(tx, projectID)
	if err != nil {
		return err
	}
	for i, e := range entries {
		_, err := tx.Exec(`
			UPDATE ordered_tasks SET position = ?
			WHERE project_id = ? AND task_id = ?
		`, -int64(i+1)*PositionGap, projectID, e.TaskID)
		if err != nil {
			return fmt.Errorf("renumber queue %s: %w", projectID, err)
		}
	}
	return restoreNegatedTx(tx, projectID)
}

func restoreNegatedTx(tx *TxOps, projectID string) error {
	_, err := tx.Exec(`
		UPDATE ordered_tasks SET position = -position
		WHERE project_id = ? AND position < 0
	`, projectID)
	if err != nil {
		return fmt.Errorf("restore queue positions %s: %w", projectID, err)
	}
	return nil
}

// ListQueue returns the project queue joined with task state, in position order.
func (s *Store) ListQueue(ctx context.Context, projectID string) ([]QueueItem, error) {
	var items []QueueItem
	err := s.RunInTx(ctx, func(tx *TxOps) error {
		var err error
		items, err = ListQueueTx(tx, projectID)
		return err
	})
	return items, err
}

// ListQueueTx is ListQueue within a transaction.
func ListQueueTx(tx *TxOps, projectID string) ([]QueueItem, error) {
	rows, err := tx.Query(`
		SELECT o.position, `+taskColumns+`
		FROM ordered_tasks o JOIN tasks t ON t.id = o.task_id
		WHERE o.project_id = ?
		ORDER BY o.position ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list queue %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	var items []QueueItem
	for rows.Next() {
		var item QueueItem
		t, err := scanTask(positionScanner{row: rows, position: &item.Position})
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		item.Task = *t
		items = append(items, item)
	}
	return items, rows.Err()
}

// positionScanner reads the leading position column before handing the rest
// of the row to a task scanner.
type positionScanner struct {
	row      rowScanner
	position *int64
}

func (p positionScanner) Scan(dest ...any) error {
	return p.row.Scan(append([]any{p.position}, dest...)...)
}
