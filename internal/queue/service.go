// Package queue maintains the per-project ordered queue of approved tasks.
//
// Entries are spaced db.PositionGap apart. Reordering takes the midpoint of
// the target gap and falls back to renumbering the whole queue when the gap
// is exhausted, so callers never see a position conflict.
package queue

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/taskq/internal/db"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
	"github.com/randalmurphal/taskq/internal/events"
)

// Service is the public boundary of the queue engine. Errors it returns are
// always *errors.TaskqError.
type Service struct {
	store  *db.Store
	events *events.PublishHelper
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the publisher that receives queue events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.events = events.NewPublishHelper(p)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a queue service over store.
func NewService(store *db.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		events: events.NewPublishHelper(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the project queue joined with task state, in position order.
func (s *Service) List(ctx context.Context, projectID string) ([]db.QueueItem, error) {
	var items []db.QueueItem
	err := s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		ok, err := db.LockProjectTx(tx, projectID)
		if err != nil {
			return err
		}
		if !ok {
			return tqerrors.ErrProjectNotFound(projectID)
		}
		items, err = db.ListQueueTx(tx, projectID)
		return err
	})
	if err != nil {
		return nil, tqerrors.Wrap(err, "list queue for project '"+projectID+"'")
	}
	return items, nil
}
