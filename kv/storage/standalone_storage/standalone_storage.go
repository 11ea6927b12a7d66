package standalone_storage

import (
	"context"

	"github.com/Connor1996/badger"

	"github.com/dingodb/dingokv/kv/config"
	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/util/engine_util"
)

// StandAloneStorage is an implementation of Storage for a single-node
// store. It does not communicate with other nodes and all data is
// stored locally in badger.
type StandAloneStorage struct {
	engines *engine_util.Engines
	config  *config.Config
}

func NewStandAloneStorage(conf *config.Config) *StandAloneStorage {
	return &StandAloneStorage{config: conf}
}

func (s *StandAloneStorage) Start() error {
	db := engine_util.CreateDB("kv", s.config)
	s.engines = engine_util.NewEngines(db, s.config.DBPath)
	return nil
}

func (s *StandAloneStorage) Stop() error {
	return s.engines.Close()
}

func (s *StandAloneStorage) Reader(ctx context.Context) (storage.StorageReader, error) {
	return newBadgerReader(s.engines.Kv.NewTransaction(false)), nil
}

func (s *StandAloneStorage) Write(ctx context.Context, batch []storage.Modify) error {
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.SetCF(data.Cf, data.Key, data.Value)
		case storage.Delete:
			wb.DeleteCF(data.Cf, data.Key)
		}
	}
	return s.engines.WriteKV(wb)
}

type badgerReader struct {
	txn *badger.Txn
}

func newBadgerReader(txn *badger.Txn) *badgerReader {
	return &badgerReader{txn}
}

func (r *badgerReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := engine_util.GetCFFromTxn(r.txn, cf, key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return val, err
}

func (r *badgerReader) IterCF(cf string) engine_util.DBIterator {
	return engine_util.NewCFIterator(cf, r.txn)
}

func (r *badgerReader) IterReverseCF(cf string) engine_util.DBIterator {
	return engine_util.NewReverseCFIterator(cf, r.txn)
}

func (r *badgerReader) Close() {
	r.txn.Discard()
}
