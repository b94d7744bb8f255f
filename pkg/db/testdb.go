package db

import (
	"fmt"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testSeq atomic.Int64

// NewTest opens a private in-memory SQLite database. Every call gets its own
// schema so parallel tests do not share rows.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:kasir_test_%d?mode=memory&cache=shared", testSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	// a shared-cache memory database lives as long as one connection holds it
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
