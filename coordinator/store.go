package coordinator

import (
	"encoding/json"
	"fmt"

	"github.com/pingcap/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dingodb/dingokv/meta"
)

const (
	incrementKeyPrefix = "increment/"
	snapshotKey        = "snapshot/meta"
)

// metaStore persists the coordinator state in an embedded leveldb: a
// stream of MetaIncrement log entries under increment/, plus a periodic
// snapshot of the in-memory maps. On restart the snapshot is loaded and
// the increments past its log index are replayed.
type metaStore struct {
	db *leveldb.DB
}

// metaSnapshot is the serialized form of the in-memory maps at a log
// index. Increments at or below LogIndex are folded in.
type metaSnapshot struct {
	LogIndex uint64                         `json:"log_index"`
	IdEpochs map[IdEpochKind]uint64         `json:"id_epochs"`
	Schemas  []meta.Schema                  `json:"schemas"`
	Tables   []TableInternal                `json:"tables"`
	Indexes  []IndexInternal                `json:"indexes"`
	Regions  []meta.Region                  `json:"regions"`
	Stores   []meta.Store                   `json:"stores"`
	Metrics  map[uint64]*meta.RegionMetrics `json:"metrics,omitempty"`
}

func openMetaStore(path string) (*metaStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &metaStore{db: db}, nil
}

func (s *metaStore) close() error {
	return errors.WithStack(s.db.Close())
}

func incrementKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", incrementKeyPrefix, index))
}

// appendIncrement durably appends one log entry before it is applied.
func (s *metaStore) appendIncrement(index uint64, inc *MetaIncrement) error {
	value, err := json.Marshal(inc)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(s.db.Put(incrementKey(index), value, nil))
}

// replay walks the increments with index > from in log order.
func (s *metaStore) replay(from uint64, fn func(index uint64, inc *MetaIncrement) error) error {
	iter := s.db.NewIterator(ldbutil.BytesPrefix([]byte(incrementKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var index uint64
		if _, err := fmt.Sscanf(string(iter.Key()), incrementKeyPrefix+"%d", &index); err != nil {
			return errors.WithStack(err)
		}
		if index <= from {
			continue
		}
		inc := new(MetaIncrement)
		if err := json.Unmarshal(iter.Value(), inc); err != nil {
			return errors.WithStack(err)
		}
		if err := fn(index, inc); err != nil {
			return err
		}
	}
	return errors.WithStack(iter.Error())
}

func (s *metaStore) saveSnapshot(snap *metaSnapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := s.db.Put([]byte(snapshotKey), value, nil); err != nil {
		return errors.WithStack(err)
	}
	// Log entries covered by the snapshot are no longer needed.
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(ldbutil.BytesPrefix([]byte(incrementKeyPrefix)), nil)
	for iter.Next() {
		var index uint64
		if _, err := fmt.Sscanf(string(iter.Key()), incrementKeyPrefix+"%d", &index); err != nil {
			continue
		}
		if index <= snap.LogIndex {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	iter.Release()
	return errors.WithStack(s.db.Write(batch, nil))
}

// loadSnapshot returns nil when no snapshot has been taken yet.
func (s *metaStore) loadSnapshot() (*metaSnapshot, error) {
	value, err := s.db.Get([]byte(snapshotKey), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	snap := new(metaSnapshot)
	if err := json.Unmarshal(value, snap); err != nil {
		return nil, errors.WithStack(err)
	}
	return snap, nil
}
