package queue

import (
	"context"
	"fmt"

	"github.com/randalmurphal/taskq/internal/db"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

// SetApproval approves or unapproves a task. The approval timestamp and the
// queue entry change in the same transaction: approving appends the task to
// the end of the queue, unapproving removes it.
//
// An empty projectID means the project of the task's story. changed is false
// when the task was already in the requested state.
func (s *Service) SetApproval(ctx context.Context, taskID string, approved bool, projectID string) (changed bool, err error) {
	var (
		resolved string
		position int64
	)
	err = s.store.RunInTxRetry(ctx, func(tx *db.TxOps) error {
		changed = false
		position = 0

		resolved = projectID
		if resolved == "" {
			pid, err := db.TaskProjectIDTx(tx, taskID)
			if err != nil {
				return err
			}
			if pid == "" {
				return tqerrors.ErrTaskNotFound(taskID)
			}
			resolved = pid
		}

		ok, err := db.LockProjectTx(tx, resolved)
		if err != nil {
			return err
		}
		if !ok {
			return tqerrors.ErrProjectNotFound(resolved)
		}

		task, err := db.GetTaskTx(tx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return tqerrors.ErrTaskNotFound(taskID)
		}
		if task.IsApproved() == approved {
			return nil
		}

		now := s.store.Now()
		if _, err := db.SetTaskApprovedTx(tx, taskID, approved, now); err != nil {
			return err
		}

		if approved {
			if _, err := db.EnsureHeadroomTx(tx, resolved, db.PositionGap); err != nil {
				return err
			}
			maxPos, err := db.MaxPositionTx(tx, resolved)
			if err != nil {
				return err
			}
			position = maxPos + db.PositionGap
			inserted, err := db.InsertOrderedEntryTx(tx, resolved, taskID, position)
			if err != nil {
				return err
			}
			if !inserted {
				// A leftover entry keeps its place.
				entry, err := db.GetOrderedEntryTx(tx, resolved, taskID)
				if err != nil {
					return err
				}
				position = 0
				if entry != nil {
					position = entry.Position
				}
			}
		} else {
			if _, err := db.DeleteOrderedEntryTx(tx, resolved, taskID); err != nil {
				return err
			}
		}

		changed = true
		return nil
	})
	if err != nil {
		return false, tqerrors.Wrap(err, fmt.Sprintf("set approval for task '%s'", taskID))
	}

	if changed {
		s.logger.Info("task approval changed",
			"project", resolved,
			"task", taskID,
			"approved", approved,
		)
		s.events.Approval(resolved, taskID, approved, position)
	}
	return changed, nil
}
