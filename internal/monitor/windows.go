package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanobs/streamwatch/internal/datastore/repository"
)

// Windows used by the classifier. The configured window set may carry
// more (hourly, weekly) for queries; these two drive health decisions.
const (
	FiveMinWindow = 5 * time.Minute
	OneDayWindow  = 24 * time.Hour
)

// WindowRates holds the aggregate for each configured lookback window,
// keyed by window length.
type WindowRates map[time.Duration]repository.WindowAggregate

// Rate returns the rate for one window, 0 when the window is absent or
// empty.
func (w WindowRates) Rate(window time.Duration) float64 {
	return w[window].Rate()
}

// WindowEngine computes windowed throughput aggregates for streams.
type WindowEngine struct {
	counts  repository.CountRepository
	windows []time.Duration
}

// NewWindowEngine creates a WindowEngine over the given window set. The
// classifier's five-minute and one-day windows are always included.
func NewWindowEngine(counts repository.CountRepository, windows []time.Duration) *WindowEngine {
	set := make(map[time.Duration]bool, len(windows)+2)
	merged := make([]time.Duration, 0, len(windows)+2)
	for _, w := range append([]time.Duration{FiveMinWindow, OneDayWindow}, windows...) {
		if w <= 0 || set[w] {
			continue
		}
		set[w] = true
		merged = append(merged, w)
	}
	return &WindowEngine{counts: counts, windows: merged}
}

// RatesAt computes the aggregate for every configured window relative
// to now.
func (e *WindowEngine) RatesAt(ctx context.Context, streamID uint, now time.Time) (WindowRates, error) {
	rates := make(WindowRates, len(e.windows))
	for _, window := range e.windows {
		agg, err := e.counts.AggregateSince(ctx, streamID, now.Add(-window))
		if err != nil {
			return nil, fmt.Errorf("failed to compute %v window for stream %d: %w", window, streamID, err)
		}
		rates[window] = agg
	}
	return rates, nil
}
