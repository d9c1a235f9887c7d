//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of the
// authbase AccountStore. It is designed for deployment on Google Cloud
// Platform and supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following Datastore kinds:
//   - Account: the account record, keyed by account ID
//   - AccountEmail: email -> account ID mapping, keyed by normalized email
//
// The AccountEmail kind doubles as a uniqueness guard: account creation runs
// in a transaction that fails with ErrAccountExists when the email key is
// already taken.
//
// # Namespacing
//
// Pass a namespace when creating the store to isolate data between tenants:
//
//	accounts := gae.NewAccountStore(client, "tenant-123")
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	accounts := gae.NewAccountStore(client, "") // default namespace
package gae
