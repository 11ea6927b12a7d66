package mvcc

import (
	"bytes"

	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/util/codec"
	"github.com/dingodb/dingokv/kv/util/engine_util"
)

// MvccTxn groups together writes as part of a single transaction. It
// permits reading from a snapshot and stores writes in a buffer for
// atomic application. It provides an abstraction over low-level
// storage, lowering the concepts of timestamps, writes, and locks into
// plain keys and values.
type MvccTxn struct {
	RoTxn
	writes []storage.Modify
}

// RoTxn is a 'transaction' which will only read from the engine.
type RoTxn struct {
	Reader  storage.StorageReader
	StartTS uint64
}

func NewTxn(reader storage.StorageReader, startTs uint64) MvccTxn {
	return MvccTxn{
		RoTxn: RoTxn{Reader: reader, StartTS: startTs},
	}
}

// Writes returns all changes added to this transaction.
func (txn *MvccTxn) Writes() []storage.Modify {
	return txn.writes
}

// MostRecentWrite finds the most recent write with the given key. It returns a Write from the DB and that
// write's commit timestamp, or an error.
func (txn *RoTxn) MostRecentWrite(key []byte) (*Write, uint64, error) {
	return txn.mostRecentWriteBefore(key, TsMax)
}

// mostRecentWriteBefore finds the write with the given key and the most recent commit timestamp before or equal to ts.
// It returns a Write from the DB and that write's commit timestamp, or an error.
// Postcondition: the returned ts is <= the ts arg.
func (txn *RoTxn) mostRecentWriteBefore(key []byte, ts uint64) (*Write, uint64, error) {
	iter := txn.Reader.IterCF(engine_util.CfWrite)
	defer iter.Close()
	iter.Seek(EncodeKey(key, ts))
	if !iter.Valid() {
		return nil, 0, nil
	}
	item := iter.Item()
	commitTs := decodeTimestamp(item.Key())
	if !bytes.Equal(DecodeUserKey(item.Key()), key) {
		return nil, 0, nil
	}
	value, err := item.Value()
	if err != nil {
		return nil, 0, err
	}
	write, err := ParseWrite(value)
	if err != nil {
		return nil, 0, err
	}

	return write, commitTs, nil
}

// CurrentWrite searches for a write with this transaction's start timestamp. It returns a Write from the DB and that
// write's commit timestamp, or an error.
func (txn *RoTxn) CurrentWrite(key []byte) (*Write, uint64, error) {
	seekTs := TsMax
	for {
		write, commitTs, err := txn.mostRecentWriteBefore(key, seekTs)
		if err != nil {
			return nil, 0, err
		}
		if write == nil {
			return nil, 0, nil
		}
		if write.StartTS == txn.StartTS {
			return write, commitTs, nil
		}
		if commitTs <= txn.StartTS {
			return nil, 0, nil
		}
		seekTs = commitTs - 1
	}
}

// GetValue finds the value for key, valid at the start timestamp of this transaction.
// I.e., the most recent value committed at or before the start of this transaction.
func (txn *RoTxn) GetValue(key []byte) ([]byte, error) {
	return txn.valueAt(key, txn.StartTS)
}

// valueAt resolves the visible value of key at a read timestamp by
// walking the write column family newest-first.
func (txn *RoTxn) valueAt(key []byte, ts uint64) ([]byte, error) {
	iter := txn.Reader.IterCF(engine_util.CfWrite)
	defer iter.Close()
	for iter.Seek(EncodeKey(key, ts)); iter.Valid(); iter.Next() {
		item := iter.Item()
		// If the user key part of the combined key has changed, then we've got to the next key without finding a put write.
		if !bytes.Equal(DecodeUserKey(item.Key()), key) {
			return nil, nil
		}
		value, err := item.Value()
		if err != nil {
			return nil, err
		}
		write, err := ParseWrite(value)
		if err != nil {
			return nil, err
		}
		switch write.Kind {
		case WriteKindPut:
			if len(write.ShortValue) > 0 {
				return write.ShortValue, nil
			}
			return txn.Reader.GetCF(engine_util.CfDefault, EncodeKey(key, write.StartTS))
		case WriteKindDelete:
			return nil, nil
		case WriteKindRollback, WriteKindLock:
		}
	}

	// Iterated to the end of the DB.
	return nil, nil
}

// getValue gets the value at precisely the given key and ts, without searching.
func (txn *RoTxn) getValue(key []byte, ts uint64) ([]byte, error) {
	return txn.Reader.GetCF(engine_util.CfDefault, EncodeKey(key, ts))
}

// GetLock returns a lock if key is locked. It will return (nil, nil) if there is no lock on key, and (nil, err)
// if an error occurs during lookup.
func (txn *RoTxn) GetLock(key []byte) (*Lock, error) {
	raw, err := txn.Reader.GetCF(engine_util.CfLock, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	return ParseLock(raw)
}

// PutWrite records write at key and ts.
func (txn *MvccTxn) PutWrite(key []byte, ts uint64, write *Write) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   EncodeKey(key, ts),
			Value: write.ToBytes(),
			Cf:    engine_util.CfWrite,
		},
	})
}

// PutLock adds a key/lock to this transaction.
func (txn *MvccTxn) PutLock(key []byte, lock *Lock) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   key,
			Value: lock.ToBytes(),
			Cf:    engine_util.CfLock,
		},
	})
}

// DeleteLock adds a delete lock to this transaction.
func (txn *MvccTxn) DeleteLock(key []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Delete{
			Key: key,
			Cf:  engine_util.CfLock,
		},
	})
}

// PutValue adds a key/value write to this transaction.
func (txn *MvccTxn) PutValue(key []byte, value []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   EncodeKey(key, txn.StartTS),
			Value: value,
			Cf:    engine_util.CfDefault,
		},
	})
}

// DeleteValue removes a key/value pair in this transaction.
func (txn *MvccTxn) DeleteValue(key []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Delete{
			Key: EncodeKey(key, txn.StartTS),
			Cf:  engine_util.CfDefault,
		},
	})
}

// AllLocksForTxn returns all locks belonging to the transaction.
func AllLocksForTxn(txn *RoTxn) ([]KlPair, error) {
	var result []KlPair
	iter := txn.Reader.IterCF(engine_util.CfLock)
	defer iter.Close()
	for ; iter.Valid(); iter.Next() {
		item := iter.Item()
		val, err := item.Value()
		if err != nil {
			return nil, err
		}
		lock, err := ParseLock(val)
		if err != nil {
			return nil, err
		}
		if lock.Ts == txn.StartTS {
			result = append(result, KlPair{item.KeyCopy(nil), lock})
		}
	}
	return result, nil
}

// EncodeKey encodes a user key and appends an encoded timestamp to a key. Keys and timestamps are encoded so that
// timestamped keys are sorted first by key (ascending), then by timestamp (descending).
func EncodeKey(key []byte, ts uint64) []byte {
	return codec.EncodeKey(key, ts)
}

// DecodeUserKey takes a key + timestamp and returns the key part.
func DecodeUserKey(key []byte) []byte {
	return codec.DecodeUserKey(key)
}

// decodeTimestamp takes a key + timestamp and returns the timestamp part.
func decodeTimestamp(key []byte) uint64 {
	return codec.DecodeTs(key)
}
