package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// streamRepository implements StreamRepository.
type streamRepository struct {
	db *gorm.DB
}

// NewStreamRepository creates a new StreamRepository.
func NewStreamRepository(db *gorm.DB) StreamRepository {
	return &streamRepository{db: db}
}

// getOrCreate looks up dest by cond; if absent it inserts create. A
// duplicate-key error from a concurrent writer is resolved by retrying
// the lookup, so the unique constraint stays the source of truth.
func getOrCreate[T any](ctx context.Context, db *gorm.DB, cond map[string]any, create *T) (*T, error) {
	var found T
	err := db.WithContext(ctx).Where(cond).First(&found).Error
	if err == nil {
		return &found, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := db.WithContext(ctx).Create(create).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := db.WithContext(ctx).Where(cond).First(&found).Error; err != nil {
				return nil, err
			}
			return &found, nil
		}
		return nil, err
	}
	return create, nil
}

// ResolveRefDes returns the reference designator row for name, creating
// it on first sight.
func (r *streamRepository) ResolveRefDes(ctx context.Context, name string) (*entities.ReferenceDesignator, error) {
	refdes, err := getOrCreate(ctx, r.db,
		map[string]any{"name": name},
		&entities.ReferenceDesignator{Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reference designator %q: %w", name, err)
	}
	return refdes, nil
}

func (r *streamRepository) resolveExpected(ctx context.Context, stream, method string) (*entities.ExpectedStream, error) {
	expected, err := getOrCreate(ctx, r.db,
		map[string]any{"name": stream, "method": method},
		&entities.ExpectedStream{Name: stream, Method: method})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve expected stream %s/%s: %w", stream, method, err)
	}
	return expected, nil
}

// ResolveStream implements the get-or-create chain for the full
// (refdes, stream, method) natural key.
func (r *streamRepository) ResolveStream(ctx context.Context, refdes, stream, method string) (*entities.DeployedStream, error) {
	refdesRow, err := r.ResolveRefDes(ctx, refdes)
	if err != nil {
		return nil, err
	}
	expectedRow, err := r.resolveExpected(ctx, stream, method)
	if err != nil {
		return nil, err
	}
	deployed, err := getOrCreate(ctx, r.db,
		map[string]any{"ref_des_id": refdesRow.ID, "expected_stream_id": expectedRow.ID},
		&entities.DeployedStream{RefDesID: refdesRow.ID, ExpectedStreamID: expectedRow.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deployed stream %s %s/%s: %w", refdes, stream, method, err)
	}
	deployed.RefDes = *refdesRow
	deployed.ExpectedStream = *expectedRow
	return deployed, nil
}

// GetStream returns one deployed stream with its associations.
// Returns ErrStreamNotFound if the stream does not exist.
func (r *streamRepository) GetStream(ctx context.Context, id uint) (*entities.DeployedStream, error) {
	var stream entities.DeployedStream
	err := r.db.WithContext(ctx).Preload("RefDes").Preload("ExpectedStream").First(&stream, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("failed to get deployed stream %d: %w", id, err)
	}
	return &stream, nil
}

// ListStreams returns all deployed streams with their associations.
func (r *streamRepository) ListStreams(ctx context.Context) ([]entities.DeployedStream, error) {
	var streams []entities.DeployedStream
	err := r.db.WithContext(ctx).Preload("RefDes").Preload("ExpectedStream").
		Order("id ASC").Find(&streams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deployed streams: %w", err)
	}
	return streams, nil
}

// ListStreamsByRefDes returns the deployed streams of one instrument.
func (r *streamRepository) ListStreamsByRefDes(ctx context.Context, refdes string) ([]entities.DeployedStream, error) {
	var streams []entities.DeployedStream
	err := r.db.WithContext(ctx).Preload("RefDes").Preload("ExpectedStream").
		Joins("JOIN reference_designators ON reference_designators.id = deployed_streams.ref_des_id").
		Where("reference_designators.name = ?", refdes).
		Order("deployed_streams.id ASC").Find(&streams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list streams for %s: %w", refdes, err)
	}
	return streams, nil
}

// ListRefDes returns all known reference designators.
func (r *streamRepository) ListRefDes(ctx context.Context) ([]entities.ReferenceDesignator, error) {
	var refs []entities.ReferenceDesignator
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&refs).Error; err != nil {
		return nil, fmt.Errorf("failed to list reference designators: %w", err)
	}
	return refs, nil
}

// GetRefDesByName returns one reference designator without creating it.
func (r *streamRepository) GetRefDesByName(ctx context.Context, name string) (*entities.ReferenceDesignator, error) {
	var refdes entities.ReferenceDesignator
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&refdes).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("failed to get reference designator %q: %w", name, err)
	}
	return &refdes, nil
}

// ListExpected returns all expected stream definitions.
func (r *streamRepository) ListExpected(ctx context.Context) ([]entities.ExpectedStream, error) {
	var expected []entities.ExpectedStream
	if err := r.db.WithContext(ctx).Order("name ASC, method ASC").Find(&expected).Error; err != nil {
		return nil, fmt.Errorf("failed to list expected streams: %w", err)
	}
	return expected, nil
}

// UpsertExpected creates or updates the defaults for one
// (stream, method) pair.
func (r *streamRepository) UpsertExpected(ctx context.Context, expected *entities.ExpectedStream) error {
	var existing entities.ExpectedStream
	err := r.db.WithContext(ctx).
		Where("name = ? AND method = ?", expected.Name, expected.Method).
		First(&existing).Error
	switch {
	case err == nil:
		expected.ID = existing.ID
		if err := r.db.WithContext(ctx).Save(expected).Error; err != nil {
			return fmt.Errorf("failed to update expected stream %s/%s: %w", expected.Name, expected.Method, err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(expected).Error; err != nil {
			return fmt.Errorf("failed to create expected stream %s/%s: %w", expected.Name, expected.Method, err)
		}
		return nil
	default:
		return fmt.Errorf("failed to upsert expected stream %s/%s: %w", expected.Name, expected.Method, err)
	}
}

// UpdateObservation records the latest counter reading.
func (r *streamRepository) UpdateObservation(ctx context.Context, id uint, count uint64, lastSeen, collected time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.DeployedStream{}).Where("id = ?", id).
		Updates(map[string]any{
			"last_particle_count": count,
			"last_seen":           lastSeen,
			"collected_time":      collected,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update observation for stream %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStreamNotFound
	}
	return nil
}

func (r *streamRepository) setOverrides(ctx context.Context, id uint, rate *float64, warn, fail *int) error {
	result := r.db.WithContext(ctx).Model(&entities.DeployedStream{}).Where("id = ?", id).
		Updates(map[string]any{
			"rate_override": rate,
			"warn_override": warn,
			"fail_override": fail,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set overrides for stream %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStreamNotFound
	}
	return nil
}

// SetOverrides replaces the per-instance threshold overrides.
func (r *streamRepository) SetOverrides(ctx context.Context, id uint, rate *float64, warn, fail *int) error {
	return r.setOverrides(ctx, id, rate, warn, fail)
}

// DisableStream marks the stream explicitly excluded from monitoring.
func (r *streamRepository) DisableStream(ctx context.Context, id uint) error {
	zeroRate := 0.0
	zeroInterval := 0
	return r.setOverrides(ctx, id, &zeroRate, &zeroInterval, &zeroInterval)
}

// EnableStream clears all overrides so the expected defaults apply.
func (r *streamRepository) EnableStream(ctx context.Context, id uint) error {
	return r.setOverrides(ctx, id, nil, nil, nil)
}
