// Package ingest adapts upstream metadata services and message queues
// into raw counter readings for the monitor.
package ingest

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedReading marks a reading missing required fields. The
// monitor skips such readings with a warning; they never abort a batch.
var ErrMalformedReading = errors.New("malformed reading")

// Reading is one raw counter observation from an upstream source.
type Reading struct {
	RefDes string
	Stream string
	Method string
	// Count is the cumulative particle or byte count, monotonically
	// non-decreasing per stream under normal operation.
	Count uint64
	// LastSeen is when the upstream last saw data for the stream.
	LastSeen time.Time
}

// Validate reports whether the reading carries every required field.
func (r *Reading) Validate() error {
	if r.RefDes == "" || r.Stream == "" || r.Method == "" || r.LastSeen.IsZero() {
		return ErrMalformedReading
	}
	return nil
}

// Source produces one batch of counter readings per collection cycle.
// The monitor never knows which implementation is active.
type Source interface {
	// Gather returns the current readings for every stream the source
	// knows about.
	Gather(ctx context.Context) ([]Reading, error)
	// Close releases any held connections.
	Close() error
}
