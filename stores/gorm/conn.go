//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	connGroup singleflight.Group
	connMu    sync.Mutex
	connCache = map[string]*gorm.DB{}
)

// OpenShared returns a process-wide shared connection for the given DSN.
// Parallel callers during startup share a single connection attempt, and a
// failed attempt is forgotten so the next caller retries.
func OpenShared(dsn string, timeout time.Duration) (*gorm.DB, error) {
	connMu.Lock()
	if db, ok := connCache[dsn]; ok {
		connMu.Unlock()
		return db, nil
	}
	connMu.Unlock()

	result, err, _ := connGroup.Do(dsn, func() (any, error) {
		db, err := open(dsn, timeout)
		if err != nil {
			return nil, err
		}
		connMu.Lock()
		connCache[dsn] = db
		connMu.Unlock()
		return db, nil
	})
	if err != nil {
		connGroup.Forget(dsn)
		return nil, err
	}
	return result.(*gorm.DB), nil
}

func open(dsn string, timeout time.Duration) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting database handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
