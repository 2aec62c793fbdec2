package repository

import (
	"context"
	"time"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// WindowAggregate is the summed counter window for one stream: Delta
// particles over Elapsed seconds. A window with no data has Elapsed 0
// and Rate() 0; callers treat that as "no data", never as an error.
type WindowAggregate struct {
	Delta   int64
	Elapsed float64
}

// Rate returns the aggregate throughput, 0 when the window is empty.
func (w WindowAggregate) Rate() float64 {
	if w.Elapsed <= 0 {
		return 0
	}
	return float64(w.Delta) / w.Elapsed
}

// RatePoint is one point of a resampled rate series for plotting.
type RatePoint struct {
	Time time.Time `json:"time"`
	Rate float64   `json:"rate"`
}

// CountRepository stores and aggregates counter buckets for both the
// particle (StreamCount) and byte (PortCount) series.
type CountRepository interface {
	AddStreamCount(ctx context.Context, count *entities.StreamCount) error
	AddPortCount(ctx context.Context, count *entities.PortCount) error

	// AggregateSince sums stream counter buckets collected after the
	// given time.
	AggregateSince(ctx context.Context, streamID uint, since time.Time) (WindowAggregate, error)

	// Range queries for the resampler; [start, end) on collected_time.
	StreamCountsInRange(ctx context.Context, streamID uint, start, end time.Time) ([]entities.StreamCount, error)
	PortCountsInRange(ctx context.Context, refdesID uint, start, end time.Time) ([]entities.PortCount, error)

	// Replace atomically deletes the fine-grained rows in [start, end)
	// and inserts the coarse replacements.
	ReplaceStreamCounts(ctx context.Context, streamID uint, start, end time.Time, replacement []entities.StreamCount) error
	ReplacePortCounts(ctx context.Context, refdesID uint, start, end time.Time, replacement []entities.PortCount) error

	// StreamIDsWithCountsBefore lists streams that still have buckets
	// older than the cutoff, i.e. candidates for resampling.
	StreamIDsWithCountsBefore(ctx context.Context, cutoff time.Time) ([]uint, error)
	RefDesIDsWithPortCountsBefore(ctx context.Context, cutoff time.Time) ([]uint, error)

	// HourlyRates returns the mean rate per hour for one stream,
	// for plotting.
	HourlyRates(ctx context.Context, streamID uint, start, end time.Time) ([]RatePoint, error)
}
