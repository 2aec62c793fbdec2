package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// setupTestDB creates an in-memory SQLite database for repository tests.
// Each test gets its own named shared-cache database with a single
// connection so all operations see the same data.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=ON", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gorm_logger.Default.LogMode(gorm_logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&entities.ReferenceDesignator{},
		&entities.ExpectedStream{},
		&entities.DeployedStream{},
		&entities.StreamCount{},
		&entities.PortCount{},
		&entities.StreamCondition{},
		&entities.PendingUpdate{},
	)
	require.NoError(t, err, "failed to migrate tables")
	return db
}

// createTestStream resolves a deployed stream with the given thresholds
// on its expected stream.
func createTestStream(t *testing.T, db *gorm.DB, refdes, stream, method string, rate float64, warn, fail int) *entities.DeployedStream {
	t.Helper()
	repo := NewStreamRepository(db)
	deployed, err := repo.ResolveStream(t.Context(), refdes, stream, method)
	require.NoError(t, err)

	expected := deployed.ExpectedStream
	expected.Rate = rate
	expected.WarnInterval = warn
	expected.FailInterval = fail
	require.NoError(t, repo.UpsertExpected(t.Context(), &expected))
	deployed.ExpectedStream = expected
	return deployed
}
