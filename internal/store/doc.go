// Package store persists the call audit log.
//
// Every tools/call the gateway handles, successful or not, is recorded as a
// CallRecord: which tool, which service/method, the outcome, and how long it
// took. The log exists for operators; dispatch semantics never depend on it
// and a failed audit write never fails the call it describes.
//
// The only implementation is SQLite (modernc.org/sqlite, WAL mode, schema
// auto-created). Auditing is optional: with no database path configured the
// gateway runs without a store.
package store
