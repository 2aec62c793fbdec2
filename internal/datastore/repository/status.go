package repository

import (
	"context"
	"errors"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// ErrConditionNotFound is returned when no classification state has been
// persisted for a stream yet. Callers treat it as previous status
// NOT_TRACKED, so the first classification always produces a
// notification.
var ErrConditionNotFound = errors.New("stream condition not found")

// ErrPendingNotFound is returned when an outbox row has already been
// removed.
var ErrPendingNotFound = errors.New("pending update not found")

// StatusRepository persists stream conditions and the notification
// outbox.
type StatusRepository interface {
	GetCondition(ctx context.Context, deployedStreamID uint) (*entities.StreamCondition, error)
	ListConditions(ctx context.Context) ([]entities.StreamCondition, error)

	// RecordTransition upserts the stream condition and inserts the
	// pending update in ONE transaction. A crash can never leave a
	// status transition recorded without its notification, nor the
	// reverse. A nil update records the condition alone (first write
	// of NOT_TRACKED bookkeeping states).
	RecordTransition(ctx context.Context, condition *entities.StreamCondition, update *entities.PendingUpdate) error

	// Outbox operations, FIFO by ascending id.
	PendingInOrder(ctx context.Context, limit int) ([]entities.PendingUpdate, error)
	DeletePending(ctx context.Context, id uint) error
	IncrementPendingError(ctx context.Context, id uint) (int, error)
	CountPending(ctx context.Context) (int64, error)
}
