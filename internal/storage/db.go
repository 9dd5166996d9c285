// Package storage provides database abstractions.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

var errReadOnly = errors.New("write in read-only transaction")

// KV is the set of key-value operations available both on a database and
// inside a transaction.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
}

// DB is the interface for key-value storage.
//
// Update runs fn in a read-write transaction: either every write made
// through the KV handle is applied, or none is. View runs fn against a
// consistent snapshot. Neither may be nested.
type DB interface {
	KV
	Update(fn func(KV) error) error
	View(fn func(KV) error) error
	Close() error
}
