package database

import (
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectAndInitializeTestDB opens an in-memory sqlite database with the
// full schema, so store tests run without a mysql instance.
func ConnectAndInitializeTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "ConnectAndInitializeTestDB")
	}

	if err := db.AutoMigrate(entities...); err != nil {
		return nil, errors.Wrap(err, "ConnectAndInitializeTestDB: AutoMigrate")
	}

	if err := initStates(db); err != nil {
		return nil, errors.Wrap(err, "ConnectAndInitializeTestDB")
	}

	return db, nil
}
