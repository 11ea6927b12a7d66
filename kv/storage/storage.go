package storage

import (
	"context"

	"github.com/dingodb/dingokv/kv/util/engine_util"
)

// Storage represents the internal-facing engine of a store node. It
// reads and writes data to disk (or semi-permanent memory) in batches
// of Modify operations.
type Storage interface {
	Start() error
	Stop() error
	Write(ctx context.Context, batch []Modify) error
	Reader(ctx context.Context) (StorageReader, error)
}

// StorageReader is a consistent read view over the engine. Iterators
// created from it must be closed before the reader is.
type StorageReader interface {
	// GetCF returns nil, nil when the key does not exist.
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string) engine_util.DBIterator
	// IterReverseCF iterates the column family from greatest to
	// smallest key.
	IterReverseCF(cf string) engine_util.DBIterator
	Close()
}
