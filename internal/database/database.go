package database

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/cardvault/internal/models"
)

// Open connects to the database for driver ("sqlite" or "postgres"), migrates the schema
// and runs the data migrations. Migration results are reported to log; nil discards them.
func Open(driver, dsn string, logLevel logger.LogLevel, log *zap.SugaredLogger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	if dialector.Name() == "sqlite" {
		// sqlite allows one writer; a single connection queues writes instead of failing with SQLITE_BUSY
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := cleanupDuplicateSnapshots(db, log); err != nil {
		return nil, fmt.Errorf("cleanup snapshots: %w", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.AuthSession{}, &models.CardRecord{}, &models.CollectionValueSnapshot{})
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db, log); err != nil {
		return nil, err
	}
	return db, nil
}
