package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

func addBucket(t *testing.T, repo CountRepository, streamID uint, at time.Time, delta int64, elapsed float64) {
	t.Helper()
	require.NoError(t, repo.AddStreamCount(t.Context(), &entities.StreamCount{
		DeployedStreamID: streamID,
		CollectedTime:    at,
		ParticleCount:    delta,
		SecondsElapsed:   elapsed,
	}))
}

func TestCountRepository_AggregateSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCountRepository(db)
	ctx := t.Context()

	stream := createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	addBucket(t, repo, stream.ID, base.Add(-10*time.Minute), 100, 300)
	addBucket(t, repo, stream.ID, base.Add(-4*time.Minute), 250, 300)
	addBucket(t, repo, stream.ID, base.Add(-1*time.Minute), 50, 60)

	agg, err := repo.AggregateSince(ctx, stream.ID, base.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 300, agg.Delta)
	assert.InDelta(t, 360, agg.Elapsed, 1e-9)
	assert.InDelta(t, 300.0/360.0, agg.Rate(), 1e-9)
}

func TestCountRepository_AggregateEmptyWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCountRepository(db)

	stream := createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)

	agg, err := repo.AggregateSince(t.Context(), stream.ID, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, agg.Delta)
	assert.Zero(t, agg.Elapsed)
	assert.Zero(t, agg.Rate(), "empty window reports zero rate, not NaN")
}

func TestCountRepository_ReplaceStreamCountsPreservesTotals(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCountRepository(db)
	ctx := t.Context()

	stream := createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	for i := 0; i < 12; i++ {
		addBucket(t, repo, stream.ID, start.Add(time.Duration(i)*5*time.Minute), 10, 300)
	}
	// A bucket outside the window must survive the swap.
	addBucket(t, repo, stream.ID, end.Add(time.Minute), 7, 60)

	coarse := []entities.StreamCount{{
		DeployedStreamID: stream.ID,
		CollectedTime:    start,
		ParticleCount:    120,
		SecondsElapsed:   3600,
	}}
	require.NoError(t, repo.ReplaceStreamCounts(ctx, stream.ID, start, end, coarse))

	inRange, err := repo.StreamCountsInRange(ctx, stream.ID, start, end)
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.EqualValues(t, 120, inRange[0].ParticleCount)
	assert.InDelta(t, 3600, inRange[0].SecondsElapsed, 1e-9)

	agg, err := repo.AggregateSince(ctx, stream.ID, start.Add(-time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 127, agg.Delta, "total delta unchanged by compaction")
	assert.InDelta(t, 3660, agg.Elapsed, 1e-9, "total elapsed unchanged by compaction")
}

func TestCountRepository_StreamIDsWithCountsBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCountRepository(db)
	ctx := t.Context()

	old := createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	fresh := createTestStream(t, db, "RS03AXBS-LJ03A-10-PARADA301", "parad_sa_sample", "streamed", 0.5, 120, 600)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	addBucket(t, repo, old.ID, cutoff.Add(-2*time.Hour), 10, 300)
	addBucket(t, repo, fresh.ID, cutoff.Add(time.Hour), 10, 300)

	ids, err := repo.StreamIDsWithCountsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []uint{old.ID}, ids)
}

func TestCountRepository_HourlyRates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCountRepository(db)
	ctx := t.Context()

	stream := createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	addBucket(t, repo, stream.ID, start.Add(5*time.Minute), 300, 300)
	addBucket(t, repo, stream.ID, start.Add(25*time.Minute), 600, 300)
	addBucket(t, repo, stream.ID, start.Add(65*time.Minute), 150, 300)

	points, err := repo.HourlyRates(ctx, stream.ID, start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, start, points[0].Time)
	assert.InDelta(t, 1.5, points[0].Rate, 1e-9)
	assert.Equal(t, start.Add(time.Hour), points[1].Time)
	assert.InDelta(t, 0.5, points[1].Rate, 1e-9)
}

func TestCountRepository_PortCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCountRepository(db)
	streams := NewStreamRepository(db)
	ctx := t.Context()

	createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	refdes, err := streams.GetRefDesByName(ctx, "RS03AXBS-LJ03A-12-CTDPFB301")
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AddPortCount(ctx, &entities.PortCount{
		RefDesID:       refdes.ID,
		CollectedTime:  at,
		ByteCount:      4096,
		SecondsElapsed: 300,
	}))

	counts, err := repo.PortCountsInRange(ctx, refdes.ID, at.Add(-time.Minute), at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.EqualValues(t, 4096, counts[0].ByteCount)
}
