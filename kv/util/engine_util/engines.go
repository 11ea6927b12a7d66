package engine_util

import (
	"os"
	"path/filepath"

	"github.com/Connor1996/badger"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/kv/config"
)

// Engines keeps a reference to and data for the badger engine backing a
// store. KvPath is the filesystem path to where the data is stored.
type Engines struct {
	Kv     *badger.DB
	KvPath string
}

func NewEngines(kvEngine *badger.DB, kvPath string) *Engines {
	return &Engines{
		Kv:     kvEngine,
		KvPath: kvPath,
	}
}

func (en *Engines) WriteKV(wb *WriteBatch) error {
	return wb.WriteToDB(en.Kv)
}

func (en *Engines) Close() error {
	return en.Kv.Close()
}

func (en *Engines) Destroy() error {
	if err := en.Close(); err != nil {
		return err
	}
	return os.RemoveAll(en.KvPath)
}

// CreateDB creates a new badger DB on disk at subPath under the
// configured data directory.
func CreateDB(subPath string, conf *config.Config) *badger.DB {
	opts := badger.DefaultOptions
	opts.Dir = filepath.Join(conf.DBPath, subPath)
	opts.ValueDir = opts.Dir
	opts.SyncWrites = true
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		log.Fatal("create db dir failed", zap.String("dir", opts.Dir), zap.Error(err))
	}
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("open badger failed", zap.String("dir", opts.Dir), zap.Error(err))
	}
	return db
}
