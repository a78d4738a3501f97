package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cleanupDuplicateSnapshots removes duplicate per-owner daily snapshots before the unique index is added.
// This runs BEFORE AutoMigrate to prevent constraint violations
func cleanupDuplicateSnapshots(db *gorm.DB, log *zap.SugaredLogger) error {
	if !db.Migrator().HasTable("collection_value_snapshots") {
		return nil
	}
	if !db.Migrator().HasColumn("collection_value_snapshots", "user_id") {
		return nil
	}

	// Keep the newest row for each owner and day
	result := db.Exec(`
		DELETE FROM collection_value_snapshots
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM collection_value_snapshots
			GROUP BY user_id, snapshot_date
		)
	`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Infow("removed duplicate value snapshots", "rows", result.RowsAffected)
	}
	return nil
}

// RunMigrations runs custom data migrations after schema changes.
// Each step only touches rows that violate the current rules, so it is safe to run on every start.
func RunMigrations(db *gorm.DB, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := migrateCardDefaults(db, log); err != nil {
		return err
	}
	return migrateStatusFields(db, log)
}

// migrateCardDefaults fills values that older rows may have left empty
func migrateCardDefaults(db *gorm.DB, log *zap.SugaredLogger) error {
	steps := []struct {
		field string
		stmt  string
	}{
		{"status", `UPDATE cards SET status = 'In Collection' WHERE status IS NULL OR status = '' OR status NOT IN ('In Collection', 'For Sale', 'Sold')`},
		{"rarity", `UPDATE cards SET rarity = 'Common' WHERE rarity IS NULL OR rarity = ''`},
		{"paid", `UPDATE cards SET paid = 0 WHERE paid IS NULL OR paid < 0`},
		{"value", `UPDATE cards SET value = 0 WHERE value IS NULL OR value < 0`},
	}
	for _, step := range steps {
		result := db.Exec(step.stmt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Infow("reset invalid card field to default", "field", step.field, "rows", result.RowsAffected)
		}
	}
	return nil
}

// migrateStatusFields clears sale fields that don't apply to the row's status
func migrateStatusFields(db *gorm.DB, log *zap.SugaredLogger) error {
	result := db.Exec(`UPDATE cards SET asking_price = NULL WHERE status <> 'For Sale' AND asking_price IS NOT NULL`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Infow("cleared asking price on cards not for sale", "rows", result.RowsAffected)
	}

	result = db.Exec(`UPDATE cards SET sold_price = NULL, sold_at = NULL WHERE status <> 'Sold' AND (sold_price IS NOT NULL OR sold_at IS NOT NULL)`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Infow("cleared sold fields on unsold cards", "rows", result.RowsAffected)
	}
	return nil
}
