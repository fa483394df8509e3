// Package memorystorage is the storage used when neither a database DSN nor
// a storage file is configured. Nothing survives a restart.
package memorystorage

import (
	"github.com/patric-chuzhbe/blogsbook/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

// Close releases nothing: there is no file to flush.
func (theStorage *MemoryStorage) Close() error {
	return nil
}
