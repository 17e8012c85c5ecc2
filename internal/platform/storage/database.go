package storage

import (
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thependalorian/cea-gateway/internal/platform/errors"
)

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

// InitDatabase opens (or creates) the SQLite database at dsn and migrates
// the gateway's tables.
func InitDatabase(dsn string) error {
	if dsn == "" {
		dsn = "data/gateway.db"
	}

	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(errors.KindStorage, "storage.init", "failed to create database directory", err)
			}
		}
	}

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.init", "failed to open database", err)
	}

	if err := conn.AutoMigrate(&UploadRecord{}); err != nil {
		return errors.Wrap(errors.KindStorage, "storage.migrate", "failed to migrate tables", err)
	}

	dbMu.Lock()
	db = conn
	dbMu.Unlock()
	return nil
}

// GetDB returns the process-wide database handle. Nil until InitDatabase has
// been called.
func GetDB() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

// Ping verifies the underlying connection is usable.
func Ping() error {
	handle := GetDB()
	if handle == nil {
		return errors.New(errors.KindStorage, "storage.ping", "database not initialised")
	}
	sqlDB, err := handle.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.ping", "failed to access connection", err)
	}
	return sqlDB.Ping()
}
