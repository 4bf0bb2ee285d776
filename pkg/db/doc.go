// Package db implements StrongLink's transactional, ordered key-value
// storage substrate: an Environment opens one persistent store and
// hands out snapshot-isolated transactions against it, each exposing a
// Cursor that merges the transaction's in-memory staging index with
// the persistent-store snapshot it was opened against.
package db
