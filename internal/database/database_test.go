package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/cardvault/internal/models"
)

func openTestDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func TestOpen_MigratesSchema(t *testing.T) {
	db, err := Open("sqlite", openTestDB(t), logger.Silent, nil)
	require.NoError(t, err)

	for _, table := range []string{"users", "auth_sessions", "cards", "collection_value_snapshots"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasColumn(&models.CardRecord{}, "set_name"))
	assert.True(t, db.Migrator().HasIndex(&models.CollectionValueSnapshot{}, "idx_snapshot_owner_date"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever", logger.Silent, nil)
	assert.Error(t, err)
}

func TestRunMigrations_NormalisesLegacyRows(t *testing.T) {
	db, err := Open("sqlite", openTestDB(t), logger.Silent, nil)
	require.NoError(t, err)

	ask, sold := 60.0, 75.0
	soldAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.CardRecord{
		{ID: "a", OwnerID: "u1", Player: "A", Status: models.StatusInCollection, AskingPrice: &ask, SoldPrice: &sold, SoldAt: &soldAt},
		{ID: "b", OwnerID: "u1", Player: "B", Status: models.StatusForSale, AskingPrice: &ask},
		{ID: "c", OwnerID: "u1", Player: "C", Status: models.StatusSold, SoldPrice: &sold, SoldAt: &soldAt},
	}
	require.NoError(t, db.Create(&rows).Error)
	require.NoError(t, db.Exec(`UPDATE cards SET status = 'Traded', paid = -4 WHERE id = 'c'`).Error)

	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, RunMigrations(db, zap.New(core).Sugar()))

	var got []models.CardRecord
	require.NoError(t, db.Order("id").Find(&got).Error)
	require.Len(t, got, 3)

	assert.Nil(t, got[0].AskingPrice)
	assert.Nil(t, got[0].SoldPrice)
	assert.Nil(t, got[0].SoldAt)

	require.NotNil(t, got[1].AskingPrice)
	assert.Equal(t, 60.0, *got[1].AskingPrice)

	assert.Equal(t, models.StatusInCollection, got[2].Status)
	assert.Zero(t, got[2].Paid)
	assert.Nil(t, got[2].SoldPrice)
	assert.Nil(t, got[2].SoldAt)

	tests := []struct {
		message string
		rows    int64
	}{
		{"reset invalid card field to default", 1},
		{"cleared asking price on cards not for sale", 1},
		{"cleared sold fields on unsold cards", 2},
	}
	for _, tt := range tests {
		entries := logs.FilterMessage(tt.message).All()
		require.NotEmpty(t, entries, tt.message)
		assert.Equal(t, tt.rows, entries[0].ContextMap()["rows"], tt.message)
	}
}
