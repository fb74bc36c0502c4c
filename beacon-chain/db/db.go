// Package db persists beacon chain data in a column/key store. The
// production store is bolt-backed; an in-memory store with identical
// semantics backs tests and simulations.
package db

// Database is a column/key byte store. Get returns nil with a nil
// error when the key is absent, so callers distinguish "not found"
// from storage failure without a sentinel.
type Database interface {
	Put(column []byte, key []byte, value []byte) error
	Get(column []byte, key []byte) ([]byte, error)
	Delete(column []byte, key []byte) error
	Close() error
}

// NewDB opens the bolt-backed store rooted at dirPath.
func NewDB(dirPath string) (Database, error) {
	return newBoltDB(dirPath)
}
