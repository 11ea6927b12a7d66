package mvcc

import (
	"bytes"
	"context"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/util/engine_util"
	"github.com/dingodb/dingokv/status"
)

// IsolationLevel selects the read semantics of BatchGet and Scan.
type IsolationLevel int

const (
	// SnapshotIsolation reads the newest version committed at or
	// before the transaction's start timestamp.
	SnapshotIsolation IsolationLevel = iota
	// ReadCommitted reads the newest committed version regardless of
	// the start timestamp.
	ReadCommitted
)

// LockInfo is the caller-facing description of a lock held on a key.
type LockInfo struct {
	Key         []byte
	PrimaryLock []byte
	LockTs      uint64
	LockTtl     uint64
	ForUpdateTs uint64
	LockType    WriteKind
	ShortValue  []byte
}

// WriteInfo is the caller-facing description of a committed write.
type WriteInfo struct {
	StartTs    uint64
	CommitTs   uint64
	Op         WriteKind
	ShortValue []byte
}

// KeyValue is one result pair of BatchGet or Scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// WriteConflict reports a write newer than the reader's snapshot.
type WriteConflict struct {
	StartTs    uint64
	ConflictTs uint64
	Key        []byte
	Primary    []byte
}

// TxnResultInfo accumulates the per-key transaction outcomes of a read
// operation. Locked keys are reported here rather than failing the
// whole call; the caller resolves the locks and retries.
type TxnResultInfo struct {
	Locked        []*LockInfo
	WriteConflict *WriteConflict
	TxnNotFound   bool
}

// GetLockInfo does a point read of the lock CF. A missing lock yields
// nil, not an error.
func GetLockInfo(reader storage.StorageReader, key []byte) (*LockInfo, error) {
	raw, err := reader.GetCF(engine_util.CfLock, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	lock, err := ParseLock(raw)
	if err != nil {
		return nil, err
	}
	return lock.Info(key), nil
}

// ScanLockInfo collects locks in [startKey, endKey) whose lock ts falls
// in [minLockTs, maxLockTs), up to limit entries. A limit of zero means
// unbounded.
func ScanLockInfo(reader storage.StorageReader, minLockTs, maxLockTs uint64, startKey, endKey []byte, limit uint32) ([]*LockInfo, error) {
	var lockInfos []*LockInfo
	iter := reader.IterCF(engine_util.CfLock)
	defer iter.Close()
	for iter.Seek(startKey); iter.Valid(); iter.Next() {
		item := iter.Item()
		key := item.KeyCopy(nil)
		if engine_util.ExceedEndKey(key, endKey) {
			break
		}
		value, err := item.Value()
		if err != nil {
			return nil, err
		}
		lock, err := ParseLock(value)
		if err != nil {
			return nil, err
		}
		if lock.Ts < minLockTs || lock.Ts >= maxLockTs {
			continue
		}
		lockInfos = append(lockInfos, lock.Info(key))
		if limit > 0 && uint32(len(lockInfos)) >= limit {
			break
		}
	}
	return lockInfos, nil
}

// GetWriteInfo seeks the write CF at (key, maxCommitTs) and walks
// toward older commits while the user key matches, returning the first
// record that passes the include filters and, when startTs is not
// TsMax, matches the record's start ts. Used by commit to check a write
// record exists and by point reads to resolve a readable version.
func GetWriteInfo(reader storage.StorageReader, minCommitTs, maxCommitTs, startTs uint64, key []byte,
	includeRollback, includeDelete, includePut bool) (*WriteInfo, error) {
	iter := reader.IterCF(engine_util.CfWrite)
	defer iter.Close()
	for iter.Seek(EncodeKey(key, maxCommitTs)); iter.Valid(); iter.Next() {
		item := iter.Item()
		if !bytes.Equal(DecodeUserKey(item.Key()), key) {
			break
		}
		commitTs := decodeTimestamp(item.Key())
		if commitTs < minCommitTs {
			break
		}
		value, err := item.Value()
		if err != nil {
			return nil, err
		}
		write, err := ParseWrite(value)
		if err != nil {
			return nil, err
		}
		if startTs != TsMax && write.StartTS != startTs {
			continue
		}
		include := false
		switch write.Kind {
		case WriteKindPut:
			include = includePut
		case WriteKindDelete:
			include = includeDelete
		case WriteKindRollback:
			include = includeRollback
		}
		if !include {
			continue
		}
		return &WriteInfo{
			StartTs:    write.StartTS,
			CommitTs:   commitTs,
			Op:         write.Kind,
			ShortValue: write.ShortValue,
		}, nil
	}
	return nil, nil
}

// GetRollbackInfo looks for the rollback marker written by a rollback
// of the transaction starting at startTs; the marker's commit ts equals
// the start ts.
func GetRollbackInfo(reader storage.StorageReader, startTs uint64, key []byte) (*WriteInfo, error) {
	info, err := GetWriteInfo(reader, startTs, startTs, startTs, key, true, false, false)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// BatchGet reads keys at startTs. Locked keys are reported in the
// TxnResultInfo and omitted from the results; absent keys are omitted.
func BatchGet(ctx context.Context, engine storage.Storage, isolation IsolationLevel, startTs uint64,
	keys [][]byte) ([]KeyValue, *TxnResultInfo, error) {
	reader, err := engine.Reader(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	txnResult := new(TxnResultInfo)
	txn := RoTxn{Reader: reader, StartTS: startTs}
	var kvs []KeyValue
	for _, key := range keys {
		lock, err := txn.GetLock(key)
		if err != nil {
			return nil, nil, err
		}
		if lock.IsLockedFor(startTs) {
			txnResult.Locked = append(txnResult.Locked, lock.Info(key))
			continue
		}
		readTs := startTs
		if isolation == ReadCommitted {
			readTs = TsMax
		}
		value, err := txn.valueAt(key, readTs)
		if err != nil {
			return nil, nil, err
		}
		if value == nil {
			continue
		}
		kvs = append(kvs, KeyValue{Key: append([]byte(nil), key...), Value: value})
	}
	return kvs, txnResult, nil
}

// Commit finishes the transactions holding the given locks: for each
// lock it appends a write record at commitTs, moves any inline value to
// the data CF, and releases the lock, all in one atomic batch. Commits
// of already-committed keys are idempotent.
func Commit(ctx context.Context, engine storage.Storage, lockInfos []*LockInfo, commitTs uint64) error {
	reader, err := engine.Reader(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	roTxn := RoTxn{Reader: reader, StartTS: commitTs}
	var batch []storage.Modify
	for _, lockInfo := range lockInfos {
		if commitTs <= lockInfo.LockTs {
			return status.New(status.TxnWriteConflict,
				"commit ts %d must exceed lock ts %d", commitTs, lockInfo.LockTs).Err()
		}
		lock, err := roTxn.GetLock(lockInfo.Key)
		if err != nil {
			return err
		}
		if lock == nil || lock.Ts != lockInfo.LockTs {
			// The lock is gone. The commit already happened iff a
			// matching write record exists.
			existing, err := GetWriteInfo(reader, 0, TsMax, lockInfo.LockTs, lockInfo.Key, false, true, true)
			if err != nil {
				return err
			}
			if existing != nil {
				log.Info("commit already applied",
					zap.ByteString("key", lockInfo.Key),
					zap.Uint64("startTs", lockInfo.LockTs),
					zap.Uint64("commitTs", existing.CommitTs))
				continue
			}
			return status.New(status.TxnLockNotFound,
				"lock not found for key %q start ts %d", lockInfo.Key, lockInfo.LockTs).Err()
		}

		kind := lock.Kind
		if kind == WriteKindLock {
			kind = WriteKindPut
		}
		write := Write{StartTS: lock.Ts, Kind: kind}
		if len(lock.ShortValue) > 0 {
			// Move the inline value to the data CF, stamped with the
			// lock's start ts so readers resolve it.
			batch = append(batch, storage.Modify{Data: storage.Put{
				Key:   EncodeKey(lockInfo.Key, lock.Ts),
				Value: lock.ShortValue,
				Cf:    engine_util.CfDefault,
			}})
		}
		batch = append(batch, storage.Modify{Data: storage.Put{
			Key:   EncodeKey(lockInfo.Key, commitTs),
			Value: write.ToBytes(),
			Cf:    engine_util.CfWrite,
		}})
		batch = append(batch, storage.Modify{Data: storage.Delete{
			Key: lockInfo.Key,
			Cf:  engine_util.CfLock,
		}})
	}
	return engine.Write(ctx, batch)
}

// Rollback aborts the transaction starting at startTs over the given
// keys in one atomic batch: data written by the transaction is removed
// for keysWithData, its locks are released, and a rollback marker is
// appended so later commits of the same transaction observe it and
// abort.
func Rollback(ctx context.Context, engine storage.Storage, keysWithData, keysWithoutData [][]byte, startTs uint64) error {
	reader, err := engine.Reader(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	txn := NewTxn(reader, startTs)
	rollback := Write{StartTS: startTs, Kind: WriteKindRollback}

	apply := func(key []byte, withData bool) error {
		if withData {
			txn.DeleteValue(key)
		}
		lock, err := txn.GetLock(key)
		if err != nil {
			return err
		}
		if lock != nil && lock.Ts == startTs {
			txn.DeleteLock(key)
		}
		txn.PutWrite(key, startTs, &rollback)
		return nil
	}

	for _, key := range keysWithData {
		if err := apply(key, true); err != nil {
			return err
		}
	}
	for _, key := range keysWithoutData {
		if err := apply(key, false); err != nil {
			return err
		}
	}
	return engine.Write(ctx, txn.Writes())
}
