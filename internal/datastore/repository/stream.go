// Package repository provides data access over the gorm datastore.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// ErrStreamNotFound is returned when a deployed stream does not exist.
var ErrStreamNotFound = errors.New("deployed stream not found")

// StreamRepository resolves stream identities and manages deployed
// stream records.
type StreamRepository interface {
	// ResolveStream returns the deployed stream for the given natural
	// key, creating the reference designator, expected stream, and
	// deployed stream rows on first sight. Safe under concurrent
	// callers resolving the same key.
	ResolveStream(ctx context.Context, refdes, stream, method string) (*entities.DeployedStream, error)

	GetStream(ctx context.Context, id uint) (*entities.DeployedStream, error)
	ListStreams(ctx context.Context) ([]entities.DeployedStream, error)
	ListStreamsByRefDes(ctx context.Context, refdes string) ([]entities.DeployedStream, error)
	ListRefDes(ctx context.Context) ([]entities.ReferenceDesignator, error)
	GetRefDesByName(ctx context.Context, name string) (*entities.ReferenceDesignator, error)
	ResolveRefDes(ctx context.Context, name string) (*entities.ReferenceDesignator, error)

	// Expected stream defaults.
	ListExpected(ctx context.Context) ([]entities.ExpectedStream, error)
	UpsertExpected(ctx context.Context, expected *entities.ExpectedStream) error

	// UpdateObservation records the latest counter reading on the
	// deployed stream row.
	UpdateObservation(ctx context.Context, id uint, count uint64, lastSeen, collected time.Time) error

	// SetOverrides replaces the per-instance threshold overrides. A nil
	// field reverts that field to the expected stream default.
	SetOverrides(ctx context.Context, id uint, rate *float64, warn, fail *int) error

	// DisableStream sets all three overrides to explicit zeros;
	// EnableStream clears them so defaults apply again.
	DisableStream(ctx context.Context, id uint) error
	EnableStream(ctx context.Context, id uint) error
}
