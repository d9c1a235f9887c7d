//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based implementation of the authbase
// AccountStore.  It supports any database that GORM supports (PostgreSQL,
// MySQL, SQLite, etc.) and is suitable for production deployments requiring
// relational database storage.
//
// # Database Schema
//
// The package auto-migrates a single accounts table with a unique index on
// email.  The uniqueness constraint is the backstop against racing
// duplicate signups; token consumption happens as one conditional UPDATE
// keyed on the still-valid token so concurrent requests cannot both
// consume it.
//
// # Usage
//
//	db, _ := gormstore.OpenShared(dsn, 5*time.Second)
//	accounts := gormstore.NewAccountStore(db)
//
// OpenShared maintains one process-wide connection per DSN with
// single-flight initialization: parallel early requests share a single
// connection attempt, and a failed attempt is forgotten so the next
// request retries.
package gorm
