package datastore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/logging"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	logger, _ = logging.ForService("datastore", serviceLevelVar)
}

// SQLiteStore implements Interface over a single-file SQLite database.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the blob table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create datastore directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Newf("failed to open SQLite database: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("datastore").
			Context("path", path).
			Build()
	}

	if err := db.AutoMigrate(&Blob{}); err != nil {
		return nil, errors.Newf("failed to migrate blob table: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("datastore").
			Build()
	}

	logger.Info("SQLite datastore opened", "path", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, error) {
	var blob Blob
	err := s.db.First(&blob, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Newf("failed to read blob: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("datastore").
			Context("key", key).
			Build()
	}
	return blob.Value, nil
}

func (s *SQLiteStore) Put(key string, value []byte) error {
	blob := Blob{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&blob).Error
	if err != nil {
		return errors.Newf("failed to write blob: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("datastore").
			Context("key", key).
			Build()
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	err := s.db.Delete(&Blob{}, "key = ?", key).Error
	if err != nil {
		return errors.Newf("failed to delete blob: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("datastore").
			Context("key", key).
			Build()
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
