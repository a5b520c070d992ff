package queue

import (
	"context"
	"fmt"

	"github.com/randalmurphal/taskq/internal/db"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
	"github.com/randalmurphal/taskq/internal/events"
)

// scratchPosition parks a task while the suffix it displaces is shifted.
// Real positions are always >= 1.
const scratchPosition int64 = 0

// Move repositions taskID within the project queue and returns its new entry.
func (s *Service) Move(ctx context.Context, projectID, taskID string, p Placement) (*db.OrderedEntry, error) {
	if err := p.validate(taskID); err != nil {
		return nil, err
	}

	var (
		result     db.OrderedEntry
		from       int64
		renumbered bool
	)
	err := s.store.RunInTxRetry(ctx, func(tx *db.TxOps) error {
		renumbered = false

		ok, err := db.LockProjectTx(tx, projectID)
		if err != nil {
			return err
		}
		if !ok {
			return tqerrors.ErrProjectNotFound(projectID)
		}

		entry, err := db.GetOrderedEntryTx(tx, projectID, taskID)
		if err != nil {
			return err
		}
		if entry == nil {
			return tqerrors.ErrNotInQueue(taskID)
		}
		from = entry.Position

		if p.Kind == KindPosition {
			if err := placeAt(tx, projectID, taskID, p.Position); err != nil {
				return err
			}
			result = db.OrderedEntry{ProjectID: projectID, TaskID: taskID, Position: p.Position}
			return nil
		}

		renumbered, err = db.EnsureHeadroomTx(tx, projectID, db.PositionGap)
		if err != nil {
			return err
		}

		pos, move, err := resolveTarget(tx, projectID, taskID, p)
		if err != nil {
			return err
		}
		if !move {
			result = *entry
			return nil
		}

		taken, err := db.PositionTakenTx(tx, projectID, pos, taskID)
		if err != nil {
			return err
		}
		if taken {
			if err := db.RenumberTx(tx, projectID); err != nil {
				return err
			}
			renumbered = true

			pos, _, err = resolveTarget(tx, projectID, taskID, p)
			if err != nil {
				return err
			}
			taken, err = db.PositionTakenTx(tx, projectID, pos, taskID)
			if err != nil {
				return err
			}
			if taken {
				return tqerrors.ErrUnexpected(
					fmt.Sprintf("move task '%s' to %s", taskID, p),
					fmt.Errorf("position %d still taken after renumbering", pos))
			}
		}

		if err := db.SetPositionTx(tx, projectID, taskID, pos); err != nil {
			return err
		}
		result = db.OrderedEntry{ProjectID: projectID, TaskID: taskID, Position: pos}
		return nil
	})
	if err != nil {
		return nil, tqerrors.Wrap(err, fmt.Sprintf("move task '%s'", taskID))
	}

	s.logger.Debug("task moved",
		"project", projectID,
		"task", taskID,
		"placement", p.String(),
		"from", from,
		"to", result.Position,
		"renumbered", renumbered,
	)
	s.events.Moved(projectID, taskID, events.MoveData{
		Placement:  p.String(),
		From:       from,
		To:         result.Position,
		Renumbered: renumbered,
	})
	return &result, nil
}

// Renumber respaces the project queue to 100, 200, 300, ... keeping order.
func (s *Service) Renumber(ctx context.Context, projectID string) ([]db.OrderedEntry, error) {
	var entries []db.OrderedEntry
	err := s.store.RunInTxRetry(ctx, func(tx *db.TxOps) error {
		ok, err := db.LockProjectTx(tx, projectID)
		if err != nil {
			return err
		}
		if !ok {
			return tqerrors.ErrProjectNotFound(projectID)
		}
		if err := db.RenumberTx(tx, projectID); err != nil {
			return err
		}
		entries, err = db.ListOrderedEntriesTx(tx, projectID)
		return err
	})
	if err != nil {
		return nil, tqerrors.Wrap(err, fmt.Sprintf("renumber queue for project '%s'", projectID))
	}

	s.logger.Debug("queue renumbered", "project", projectID, "entries", len(entries))
	s.events.Renumbered(projectID, len(entries))
	return entries, nil
}

// placeAt puts taskID at exactly n. When another entry holds n, the task is
// parked at the scratch position and every other entry at or above n moves
// down one gap, whichever direction the task travels. A backward move leaves
// nothing between n and the old position to close up, so the whole suffix
// from n shifts and the gap the task left behind stays open. A forward move
// shifts the same suffix; entries between the old position and n keep theirs.
//
// If the shift would push the tail past MaxPosition the queue is renumbered
// first and n is checked again against the new positions.
func placeAt(tx *db.TxOps, projectID, taskID string, n int64) error {
	taken, err := db.PositionTakenTx(tx, projectID, n, taskID)
	if err != nil {
		return err
	}
	if taken {
		renumbered, err := db.EnsureHeadroomTx(tx, projectID, db.PositionGap)
		if err != nil {
			return err
		}
		if renumbered {
			taken, err = db.PositionTakenTx(tx, projectID, n, taskID)
			if err != nil {
				return err
			}
		}
	}
	if taken {
		if err := db.SetPositionTx(tx, projectID, taskID, scratchPosition); err != nil {
			return err
		}
		if _, err := db.ShiftPositionsTx(tx, projectID, n, db.PositionGap, taskID); err != nil {
			return err
		}
	}
	return db.SetPositionTx(tx, projectID, taskID, n)
}

// resolveTarget computes the position p asks for, ignoring taskID's own
// entry. move is false when the queue holds no other entry, in which case
// the task stays where it is.
func resolveTarget(tx *db.TxOps, projectID, taskID string, p Placement) (pos int64, move bool, err error) {
	entries, err := db.ListOrderedEntriesTx(tx, projectID)
	if err != nil {
		return 0, false, err
	}
	others := make([]db.OrderedEntry, 0, len(entries))
	for _, e := range entries {
		if e.TaskID != taskID {
			others = append(others, e)
		}
	}

	ref := -1
	if p.Kind == KindBefore || p.Kind == KindAfter {
		for i, e := range others {
			if e.TaskID == p.RefTaskID {
				ref = i
				break
			}
		}
		if ref < 0 {
			return 0, false, tqerrors.ErrNotInQueue(p.RefTaskID)
		}
	}
	if len(others) == 0 {
		return 0, false, nil
	}

	switch p.Kind {
	case KindTop:
		return floorPosition(others[0].Position - db.PositionGap), true, nil
	case KindBottom:
		return others[len(others)-1].Position + db.PositionGap, true, nil
	case KindBefore:
		if ref == 0 {
			return floorPosition(others[ref].Position - db.PositionGap), true, nil
		}
		return midpoint(others[ref-1].Position, others[ref].Position), true, nil
	case KindAfter:
		if ref == len(others)-1 {
			return others[ref].Position + db.PositionGap, true, nil
		}
		return midpoint(others[ref].Position, others[ref+1].Position), true, nil
	default:
		return 0, false, tqerrors.ErrInvalidOperation(fmt.Sprintf("unknown placement '%s'", p.Kind))
	}
}

// midpoint of two positions; equals lo when they are adjacent.
func midpoint(lo, hi int64) int64 {
	return lo + (hi-lo)/2
}

func floorPosition(pos int64) int64 {
	if pos < 1 {
		return 1
	}
	return pos
}
