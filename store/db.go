// Package store persists people documents and upload history in SQLite
// through gorm.
package store

import (
	"os"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB opens (creating if needed) the SQLite database at path and
// migrates the schema.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %q", path)
	}
	if err := db.AutoMigrate(&Person{}, &Upload{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	return db, nil
}

// ErrDatabaseNotFound is returned by OpenQueryDB when path does not exist.
var ErrDatabaseNotFound = errors.New("database not found")

// OpenQueryDB opens an existing database without touching the schema. Used
// by read-only commands such as export and history.
func OpenQueryDB(path string) (*gorm.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrDatabaseNotFound, "%q", path)
		}
		return nil, errors.Wrapf(err, "failed to open database %q", path)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %q", path)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
