// Package resample compacts fine-grained counter buckets into coarser
// fixed-width buckets, keeping counter history storage-bounded. The
// rewrite is lossless in totals: the sum of deltas and of elapsed
// seconds over the replaced range never changes, only time resolution
// is lost.
package resample

import (
	"context"
	"sort"
	"time"

	"github.com/oceanobs/streamwatch/internal/conf"
	"github.com/oceanobs/streamwatch/internal/datastore/entities"
	"github.com/oceanobs/streamwatch/internal/datastore/repository"
	"github.com/oceanobs/streamwatch/internal/logger"
	"github.com/oceanobs/streamwatch/internal/observability/metrics"
)

// Resampler rewrites trailing windows of the stream and port counter
// series. It only touches data older than the guard start, so it can
// never race concurrent ingestion.
type Resampler struct {
	counts  repository.CountRepository
	metrics *metrics.Collectors
	log     logger.Logger

	bucketWidth time.Duration
	guardStart  time.Duration
	guardEnd    time.Duration

	now func() time.Time
}

// NewResampler creates a Resampler from the resample settings.
func NewResampler(counts repository.CountRepository, settings *conf.ResampleSettings, m *metrics.Collectors, log logger.Logger) *Resampler {
	return &Resampler{
		counts:      counts,
		metrics:     m,
		log:         log,
		bucketWidth: settings.BucketWidth.Std(),
		guardStart:  settings.GuardStart.Std(),
		guardEnd:    settings.GuardEnd.Std(),
		now:         time.Now,
	}
}

// Run performs one compaction pass over every stream and port series
// holding data inside the resample window [now-guardEnd, now-guardStart).
func (r *Resampler) Run(ctx context.Context) error {
	now := r.now()
	start := now.Add(-r.guardEnd)
	end := now.Add(-r.guardStart)

	streamIDs, err := r.counts.StreamIDsWithCountsBefore(ctx, end)
	if err != nil {
		return err
	}
	for _, id := range streamIDs {
		if err := r.ResampleStream(ctx, id, start, end); err != nil {
			return err
		}
	}

	refdesIDs, err := r.counts.RefDesIDsWithPortCountsBefore(ctx, end)
	if err != nil {
		return err
	}
	for _, id := range refdesIDs {
		if err := r.ResamplePort(ctx, id, start, end); err != nil {
			return err
		}
	}
	return nil
}

// ResampleStream compacts one stream's buckets in [start, end) into
// bucketWidth groups.
func (r *Resampler) ResampleStream(ctx context.Context, streamID uint, start, end time.Time) error {
	fine, err := r.counts.StreamCountsInRange(ctx, streamID, start, end)
	if err != nil {
		return err
	}
	if len(fine) < 2 {
		return nil
	}

	type key = time.Time
	grouped := make(map[key]*entities.StreamCount)
	for i := range fine {
		bucketTime := fine[i].CollectedTime.Truncate(r.bucketWidth)
		coarse, ok := grouped[bucketTime]
		if !ok {
			coarse = &entities.StreamCount{
				DeployedStreamID: streamID,
				CollectedTime:    bucketTime,
			}
			grouped[bucketTime] = coarse
		}
		coarse.ParticleCount += fine[i].ParticleCount
		coarse.SecondsElapsed += fine[i].SecondsElapsed
	}
	if len(grouped) == len(fine) {
		// Already at or below target resolution.
		return nil
	}

	replacement := make([]entities.StreamCount, 0, len(grouped))
	for _, coarse := range grouped {
		replacement = append(replacement, *coarse)
	}
	sort.Slice(replacement, func(i, j int) bool {
		return replacement[i].CollectedTime.Before(replacement[j].CollectedTime)
	})

	if err := r.counts.ReplaceStreamCounts(ctx, streamID, start, end, replacement); err != nil {
		return err
	}
	r.metrics.BucketsResampled.Add(float64(len(fine)))
	r.log.Debug("resampled stream counts",
		logger.Uint64("stream_id", uint64(streamID)),
		logger.Int("fine", len(fine)),
		logger.Int("coarse", len(replacement)))
	return nil
}

// ResamplePort compacts one instrument's port buckets in [start, end).
func (r *Resampler) ResamplePort(ctx context.Context, refdesID uint, start, end time.Time) error {
	fine, err := r.counts.PortCountsInRange(ctx, refdesID, start, end)
	if err != nil {
		return err
	}
	if len(fine) < 2 {
		return nil
	}

	grouped := make(map[time.Time]*entities.PortCount)
	for i := range fine {
		bucketTime := fine[i].CollectedTime.Truncate(r.bucketWidth)
		coarse, ok := grouped[bucketTime]
		if !ok {
			coarse = &entities.PortCount{
				RefDesID:      refdesID,
				CollectedTime: bucketTime,
			}
			grouped[bucketTime] = coarse
		}
		coarse.ByteCount += fine[i].ByteCount
		coarse.SecondsElapsed += fine[i].SecondsElapsed
	}
	if len(grouped) == len(fine) {
		return nil
	}

	replacement := make([]entities.PortCount, 0, len(grouped))
	for _, coarse := range grouped {
		replacement = append(replacement, *coarse)
	}
	sort.Slice(replacement, func(i, j int) bool {
		return replacement[i].CollectedTime.Before(replacement[j].CollectedTime)
	})

	if err := r.counts.ReplacePortCounts(ctx, refdesID, start, end, replacement); err != nil {
		return err
	}
	r.metrics.BucketsResampled.Add(float64(len(fine)))
	r.log.Debug("resampled port counts",
		logger.Uint64("ref_des_id", uint64(refdesID)),
		logger.Int("fine", len(fine)),
		logger.Int("coarse", len(replacement)))
	return nil
}
