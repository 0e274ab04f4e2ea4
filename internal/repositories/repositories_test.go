package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foliohq/folio/internal/db"
)

// openTestDB opens a fresh in-memory SQLite database with all migrations
// applied. Each call returns an isolated database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      ":memory:",
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	return database
}
