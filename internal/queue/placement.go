package queue

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/taskq/internal/db"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

// Kind names where a Move puts its task.
type Kind string

const (
	KindTop      Kind = "top"
	KindBottom   Kind = "bottom"
	KindBefore   Kind = "before"
	KindAfter    Kind = "after"
	KindPosition Kind = "position"
)

// Placement is a reorder request. Build one with Top, Bottom, Before,
// After or AtPosition.
type Placement struct {
	Kind      Kind
	RefTaskID string
	Position  int64
}

// Top places the task ahead of every other entry.
func Top() Placement { return Placement{Kind: KindTop} }

// Bottom places the task behind every other entry.
func Bottom() Placement { return Placement{Kind: KindBottom} }

// Before places the task immediately ahead of ref.
func Before(ref string) Placement { return Placement{Kind: KindBefore, RefTaskID: ref} }

// After places the task immediately behind ref.
func After(ref string) Placement { return Placement{Kind: KindAfter, RefTaskID: ref} }

// AtPosition places the task at exactly n, shifting whoever holds n.
func AtPosition(n int64) Placement { return Placement{Kind: KindPosition, Position: n} }

func (p Placement) String() string {
	switch p.Kind {
	case KindBefore, KindAfter:
		return fmt.Sprintf("%s %s", p.Kind, p.RefTaskID)
	case KindPosition:
		return fmt.Sprintf("position %d", p.Position)
	default:
		return string(p.Kind)
	}
}

// ParsePlacement builds a Placement from its wire form, as sent by the CLI,
// the HTTP API and the MCP tools.
func ParsePlacement(kind, ref string, position int64) (Placement, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindTop:
		return Top(), nil
	case KindBottom:
		return Bottom(), nil
	case KindBefore:
		return Before(ref), nil
	case KindAfter:
		return After(ref), nil
	case KindPosition:
		return AtPosition(position), nil
	default:
		return Placement{}, tqerrors.ErrInvalidOperation(
			fmt.Sprintf("unknown placement '%s' (want top, bottom, before, after or position)", kind))
	}
}

// validate checks the request shape for moving taskID.
func (p Placement) validate(taskID string) error {
	switch p.Kind {
	case KindTop, KindBottom:
		return nil
	case KindBefore, KindAfter:
		if p.RefTaskID == "" {
			return tqerrors.ErrInvalidOperation(fmt.Sprintf("placement '%s' requires a reference task", p.Kind))
		}
		if p.RefTaskID == taskID {
			return tqerrors.ErrInvalidOperation(
				fmt.Sprintf("cannot place task '%s' %s itself", taskID, p.Kind))
		}
		return nil
	case KindPosition:
		if p.Position < 1 {
			return tqerrors.ErrInvalidOperation(
				fmt.Sprintf("position must be at least 1, got %d", p.Position))
		}
		if p.Position > db.MaxPosition {
			return tqerrors.ErrInvalidOperation(
				fmt.Sprintf("position must be at most %d, got %d", db.MaxPosition, p.Position))
		}
		return nil
	default:
		return tqerrors.ErrInvalidOperation(fmt.Sprintf("unknown placement '%s'", p.Kind))
	}
}
