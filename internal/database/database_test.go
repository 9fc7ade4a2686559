package database

import (
	"testing"

	"parley/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ChatMessage{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestEnsureAdminEmptyTable(t *testing.T) {
	db := newMigratedDB(t)
	require.NoError(t, EnsureAdmin(db))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestEnsureAdminPromotesEarliestUser(t *testing.T) {
	db := newMigratedDB(t)
	require.NoError(t, db.Create(&models.User{Username: "first", Password: "x"}).Error)
	require.NoError(t, db.Create(&models.User{Username: "second", Password: "x"}).Error)

	require.NoError(t, EnsureAdmin(db))

	var first, second models.User
	require.NoError(t, db.Where("username = ?", "first").First(&first).Error)
	require.NoError(t, db.Where("username = ?", "second").First(&second).Error)
	assert.True(t, first.IsAdmin())
	assert.False(t, second.IsAdmin())
}

func TestEnsureAdminKeepsExistingAdmin(t *testing.T) {
	db := newMigratedDB(t)
	require.NoError(t, db.Create(&models.User{Username: "first", Password: "x"}).Error)
	require.NoError(t, db.Create(&models.User{Username: "boss", Password: "x", Role: models.RoleAdmin}).Error)

	require.NoError(t, EnsureAdmin(db))

	var first models.User
	require.NoError(t, db.Where("username = ?", "first").First(&first).Error)
	assert.False(t, first.IsAdmin(), "an existing admin suppresses promotion")
}
