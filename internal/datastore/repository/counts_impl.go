package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// countRepository implements CountRepository.
type countRepository struct {
	db *gorm.DB
}

// NewCountRepository creates a new CountRepository.
func NewCountRepository(db *gorm.DB) CountRepository {
	return &countRepository{db: db}
}

// AddStreamCount appends one particle counter bucket.
func (r *countRepository) AddStreamCount(ctx context.Context, count *entities.StreamCount) error {
	if err := r.db.WithContext(ctx).Create(count).Error; err != nil {
		return fmt.Errorf("failed to add stream count: %w", err)
	}
	return nil
}

// AddPortCount appends one byte counter bucket.
func (r *countRepository) AddPortCount(ctx context.Context, count *entities.PortCount) error {
	if err := r.db.WithContext(ctx).Create(count).Error; err != nil {
		return fmt.Errorf("failed to add port count: %w", err)
	}
	return nil
}

// AggregateSince sums buckets collected after since. COALESCE keeps an
// empty window at (0, 0) instead of NULL.
func (r *countRepository) AggregateSince(ctx context.Context, streamID uint, since time.Time) (WindowAggregate, error) {
	var agg WindowAggregate
	err := r.db.WithContext(ctx).Model(&entities.StreamCount{}).
		Select("COALESCE(SUM(particle_count), 0) AS delta, COALESCE(SUM(seconds_elapsed), 0) AS elapsed").
		Where("deployed_stream_id = ? AND collected_time > ?", streamID, since).
		Scan(&agg).Error
	if err != nil {
		return WindowAggregate{}, fmt.Errorf("failed to aggregate counts for stream %d: %w", streamID, err)
	}
	return agg, nil
}

// StreamCountsInRange returns buckets with start <= collected_time < end,
// ordered by collection time.
func (r *countRepository) StreamCountsInRange(ctx context.Context, streamID uint, start, end time.Time) ([]entities.StreamCount, error) {
	var counts []entities.StreamCount
	err := r.db.WithContext(ctx).
		Where("deployed_stream_id = ? AND collected_time >= ? AND collected_time < ?", streamID, start, end).
		Order("collected_time ASC").Find(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stream counts for stream %d: %w", streamID, err)
	}
	return counts, nil
}

// PortCountsInRange returns port buckets with start <= collected_time < end.
func (r *countRepository) PortCountsInRange(ctx context.Context, refdesID uint, start, end time.Time) ([]entities.PortCount, error) {
	var counts []entities.PortCount
	err := r.db.WithContext(ctx).
		Where("ref_des_id = ? AND collected_time >= ? AND collected_time < ?", refdesID, start, end).
		Order("collected_time ASC").Find(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query port counts for refdes %d: %w", refdesID, err)
	}
	return counts, nil
}

// ReplaceStreamCounts swaps the fine-grained rows in [start, end) for the
// coarse replacements in one transaction, so a crash mid-compaction can
// never lose or double-count a bucket.
func (r *countRepository) ReplaceStreamCounts(ctx context.Context, streamID uint, start, end time.Time, replacement []entities.StreamCount) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deployed_stream_id = ? AND collected_time >= ? AND collected_time < ?",
			streamID, start, end).Delete(&entities.StreamCount{}).Error; err != nil {
			return err
		}
		if len(replacement) == 0 {
			return nil
		}
		return tx.Create(&replacement).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace stream counts for stream %d: %w", streamID, err)
	}
	return nil
}

// ReplacePortCounts is the port-counter analog of ReplaceStreamCounts.
func (r *countRepository) ReplacePortCounts(ctx context.Context, refdesID uint, start, end time.Time, replacement []entities.PortCount) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ref_des_id = ? AND collected_time >= ? AND collected_time < ?",
			refdesID, start, end).Delete(&entities.PortCount{}).Error; err != nil {
			return err
		}
		if len(replacement) == 0 {
			return nil
		}
		return tx.Create(&replacement).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace port counts for refdes %d: %w", refdesID, err)
	}
	return nil
}

// StreamIDsWithCountsBefore lists streams holding buckets older than cutoff.
func (r *countRepository) StreamIDsWithCountsBefore(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&entities.StreamCount{}).
		Where("collected_time < ?", cutoff).
		Distinct("deployed_stream_id").Pluck("deployed_stream_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list streams with old counts: %w", err)
	}
	return ids, nil
}

// RefDesIDsWithPortCountsBefore lists instruments holding port buckets
// older than cutoff.
func (r *countRepository) RefDesIDsWithPortCountsBefore(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&entities.PortCount{}).
		Where("collected_time < ?", cutoff).
		Distinct("ref_des_id").Pluck("ref_des_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refdes with old port counts: %w", err)
	}
	return ids, nil
}

// HourlyRates computes the mean rate per hour bucket in Go rather than
// SQL so the bucketing matches the resampler's and stays portable
// across sqlite and mysql.
func (r *countRepository) HourlyRates(ctx context.Context, streamID uint, start, end time.Time) ([]RatePoint, error) {
	counts, err := r.StreamCountsInRange(ctx, streamID, start, end)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		delta   int64
		elapsed float64
	}
	buckets := make(map[time.Time]*bucket)
	for i := range counts {
		hour := counts[i].CollectedTime.Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{}
			buckets[hour] = b
		}
		b.delta += counts[i].ParticleCount
		b.elapsed += counts[i].SecondsElapsed
	}

	points := make([]RatePoint, 0, len(buckets))
	for hour, b := range buckets {
		rate := 0.0
		if b.elapsed > 0 {
			rate = float64(b.delta) / b.elapsed
		}
		points = append(points, RatePoint{Time: hour, Rate: rate})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}
