package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB returns a GORM handle backed by sqlmock so tests can force
// driver-level failures that sqlite cannot produce
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

func TestJobRepositoryPropagatesQueryErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormJobRepository(db)

	driverErr := errors.New("connection reset by peer")
	mock.ExpectQuery(`SELECT \* FROM "migration_jobs"`).WillReturnError(driverErr)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, driverErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityMappingRepositoryPropagatesQueryErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormEntityMappingRepository(db)

	driverErr := errors.New("connection reset by peer")
	mock.ExpectQuery(`SELECT \* FROM "entity_mappings"`).WillReturnError(driverErr)

	_, err := repo.Resolve(context.Background(), migration.SourceEntityCard, "64f0c1d2e3a4b5c6d7e8f901")
	assert.ErrorIs(t, err, driverErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
