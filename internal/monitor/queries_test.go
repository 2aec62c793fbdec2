package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
	"github.com/oceanobs/streamwatch/internal/datastore/repository"
)

func newTestQueries(db *gorm.DB) *Queries {
	return NewQueries(
		repository.NewStreamRepository(db),
		repository.NewStatusRepository(db),
		NewWindowEngine(repository.NewCountRepository(db), []time.Duration{time.Hour}),
		DefaultRollupOrder,
	)
}

func setCondition(t *testing.T, db *gorm.DB, streamID uint, status Status) {
	t.Helper()
	repo := repository.NewStatusRepository(db)
	require.NoError(t, repo.RecordTransition(t.Context(), &entities.StreamCondition{
		DeployedStreamID: streamID,
		LastStatus:       string(status),
		LastStatusTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil))
}

func TestQueries_StreamStatusByID(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)
	ctx := t.Context()

	stream := seedStream(t, db, testRefDes, "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	setCondition(t, db, stream.ID, StatusDegraded)

	got, err := q.StreamStatusByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Equal(t, testRefDes, got.RefDes)
	assert.Equal(t, "ctdpf_optode_sample", got.Stream)
	require.NotNil(t, got.StatusTime)
}

func TestQueries_UnclassifiedStreamReadsNotTracked(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)

	stream := seedStream(t, db, testRefDes, "ctdpf_optode_sample", "streamed", 1.0, 120, 600)

	got, err := q.StreamStatusByID(t.Context(), stream.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNotTracked, got.Status)
	assert.Nil(t, got.StatusTime)
}

func TestQueries_StreamNotFound(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)

	_, err := q.StreamStatusByID(t.Context(), 999)
	assert.ErrorIs(t, err, repository.ErrStreamNotFound)
}

func TestQueries_InstrumentRollup(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)
	ctx := t.Context()

	ok := seedStream(t, db, testRefDes, "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	bad := seedStream(t, db, testRefDes, "ctdpf_sbe43_sample", "streamed", 1.0, 120, 600)
	setCondition(t, db, ok.ID, StatusOperational)
	setCondition(t, db, bad.ID, StatusFailed)

	got, err := q.InstrumentStatusByRefDes(ctx, testRefDes)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status, "the worst stream wins the instrument rollup")
	assert.Len(t, got.Streams, 2)
}

func TestQueries_InstrumentUnknownRefDes(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)

	_, err := q.InstrumentStatusByRefDes(t.Context(), "GI01SUMO-RII11-02-CTDBPP031")
	assert.ErrorIs(t, err, repository.ErrStreamNotFound)
}

func TestQueries_SiteRollup(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)
	ctx := t.Context()

	a := seedStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	b := seedStream(t, db, "RS03AXBS-LJ03A-10-PARADA301", "parad_sa_sample", "streamed", 0.5, 120, 600)
	other := seedStream(t, db, "GI01SUMO-RII11-02-CTDBPP031", "ctdbp_cdef_dcl_instrument", "telemetered", 0.01, 7200, 86400)
	setCondition(t, db, a.ID, StatusOperational)
	setCondition(t, db, b.ID, StatusDegraded)
	setCondition(t, db, other.ID, StatusDead)

	got, err := q.SiteStatusByPrefix(ctx, "RS03AXBS")
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, got.Status, "instruments outside the site never count")
	require.Len(t, got.Instruments, 2)
	assert.Equal(t, "RS03AXBS-LJ03A-10-PARADA301", got.Instruments[0].RefDes, "instruments sorted by refdes")
}

func TestQueries_SiteUnknownPrefix(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)

	_, err := q.SiteStatusByPrefix(t.Context(), "CE01ISSM")
	assert.ErrorIs(t, err, repository.ErrStreamNotFound)
}

func TestQueries_StatusCounts(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)
	ctx := t.Context()

	a := seedStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	b := seedStream(t, db, "RS03AXBS-LJ03A-10-PARADA301", "parad_sa_sample", "streamed", 0.5, 120, 600)
	seedStream(t, db, "GI01SUMO-RII11-02-CTDBPP031", "ctdbp_cdef_dcl_instrument", "telemetered", 0.01, 7200, 86400)
	setCondition(t, db, a.ID, StatusOperational)
	setCondition(t, db, b.ID, StatusOperational)

	counts, err := q.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusOperational])
	assert.Equal(t, 1, counts[StatusNotTracked])
}

func TestQueries_StreamDetailCarriesWindowRates(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)
	ctx := t.Context()

	stream := seedStream(t, db, testRefDes, "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	counts := repository.NewCountRepository(db)
	now := time.Now().UTC()
	require.NoError(t, counts.AddStreamCount(ctx, &entities.StreamCount{
		DeployedStreamID: stream.ID, CollectedTime: now.Add(-2 * time.Minute),
		ParticleCount: 60, SecondsElapsed: 60,
	}))
	require.NoError(t, counts.AddStreamCount(ctx, &entities.StreamCount{
		DeployedStreamID: stream.ID, CollectedTime: now.Add(-30 * time.Minute),
		ParticleCount: 0, SecondsElapsed: 600,
	}))

	got, err := q.StreamStatusByID(ctx, stream.ID)
	require.NoError(t, err)
	require.Contains(t, got.WindowRates, FiveMinWindow.String())
	require.Contains(t, got.WindowRates, time.Hour.String())
	assert.InDelta(t, 1.0, got.WindowRates[FiveMinWindow.String()], 1e-9)
	assert.InDelta(t, 60.0/660.0, got.WindowRates[time.Hour.String()], 1e-9,
		"the hourly window folds in the idle bucket")
}

func TestQueries_InstrumentRollupSkipsWindowRates(t *testing.T) {
	db := setupEngineDB(t)
	q := newTestQueries(db)

	stream := seedStream(t, db, testRefDes, "ctdpf_optode_sample", "streamed", 1.0, 120, 600)
	setCondition(t, db, stream.ID, StatusOperational)

	got, err := q.InstrumentStatusByRefDes(t.Context(), testRefDes)
	require.NoError(t, err)
	require.Len(t, got.Streams, 1)
	assert.Nil(t, got.Streams[0].WindowRates, "rate detail is per-stream only")
}
