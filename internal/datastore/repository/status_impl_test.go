package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

func TestStatusRepository_ConditionNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatusRepository(db)

	_, err := repo.GetCondition(t.Context(), 42)
	assert.ErrorIs(t, err, ErrConditionNotFound)
}

func TestStatusRepository_RecordTransitionWritesBoth(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatusRepository(db)
	ctx := t.Context()

	stream := createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)

	condition := &entities.StreamCondition{
		DeployedStreamID: stream.ID,
		LastStatus:       "FAILED",
		LastStatusTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	update := &entities.PendingUpdate{
		AssetUID: "RS03AXBS-LJ03A-12-CTDPFB301",
		Payload:  `{"stream_status":"FAILED"}`,
	}
	require.NoError(t, repo.RecordTransition(ctx, condition, update))

	stored, err := repo.GetCondition(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", stored.LastStatus)

	pending, err := repo.PendingInOrder(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, update.Payload, pending[0].Payload)
	assert.Zero(t, pending[0].ErrorCount)
}

func TestStatusRepository_RecordTransitionUpdatesExisting(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatusRepository(db)
	ctx := t.Context()

	stream := createTestStream(t, db, "RS03AXBS-LJ03A-12-CTDPFB301", "ctdpf_optode_sample", "streamed", 1.0, 120, 600)

	first := &entities.StreamCondition{
		DeployedStreamID: stream.ID,
		LastStatus:       "OPERATIONAL",
		LastStatusTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.RecordTransition(ctx, first, nil))

	first.LastStatus = "DEGRADED"
	first.LastStatusTime = first.LastStatusTime.Add(time.Minute)
	require.NoError(t, repo.RecordTransition(ctx, first, &entities.PendingUpdate{
		AssetUID: "RS03AXBS-LJ03A-12-CTDPFB301",
		Payload:  `{"stream_status":"DEGRADED"}`,
	}))

	var count int64
	require.NoError(t, db.Model(&entities.StreamCondition{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "exactly one condition per stream")

	stored, err := repo.GetCondition(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, "DEGRADED", stored.LastStatus)
}

func TestStatusRepository_PendingFIFO(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatusRepository(db)
	ctx := t.Context()

	for _, payload := range []string{"first", "second", "third"} {
		require.NoError(t, db.Create(&entities.PendingUpdate{AssetUID: "uid", Payload: payload}).Error)
	}

	pending, err := repo.PendingInOrder(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "first", pending[0].Payload)
	assert.Equal(t, "second", pending[1].Payload)
	assert.Equal(t, "third", pending[2].Payload)

	limited, err := repo.PendingInOrder(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStatusRepository_IncrementAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatusRepository(db)
	ctx := t.Context()

	update := &entities.PendingUpdate{AssetUID: "uid", Payload: "{}"}
	require.NoError(t, db.Create(update).Error)

	count, err := repo.IncrementPendingError(ctx, update.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = repo.IncrementPendingError(ctx, update.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.DeletePending(ctx, update.ID))
	assert.ErrorIs(t, repo.DeletePending(ctx, update.ID), ErrPendingNotFound)

	depth, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}
