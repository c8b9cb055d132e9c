// Package storage provides the key/value slot a countdown persists its progress in.
// Values are opaque strings, mirroring browser-local storage semantics.
package storage

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Store reads and writes string values by key
type Store interface {
	// Get returns the value for key, ok is false when absent
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value
	Set(key, value string) error

	// Remove deletes key, removing an absent key is not an error
	Remove(key string) error
}

// Backend is a Store holding resources that must be released
type Backend interface {
	Store
	Close() error
}

// Kind names a storage backend
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Open creates the backend of the given kind. path is ignored for memory.
func Open(kind Kind, path string, fs afero.Fs) (Backend, error) {
	switch kind {
	case KindMemory:
		return NewMemoryStore(), nil
	case KindFile:
		return NewFileStore(fs, path), nil
	case KindSQLite:
		return OpenSQLiteStore(path)
	default:
		return nil, errors.Errorf("unknown storage backend %q", kind)
	}
}
