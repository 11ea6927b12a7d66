package mvcc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/util/engine_util"
	"github.com/dingodb/dingokv/status"
)

func TestBatchGet(t *testing.T) {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("a"), []byte("va"), 10, 15)
	commitValue(mem, []byte("b"), []byte("vb"), 10, 15)

	kvs, txnResult, err := BatchGet(context.Background(), mem, SnapshotIsolation, 20,
		[][]byte{[]byte("a"), []byte("b"), []byte("missing")})
	require.NoError(t, err)
	assert.Empty(t, txnResult.Locked)
	require.Equal(t, 2, len(kvs))
	assert.Equal(t, []byte("va"), kvs[0].Value)
	assert.Equal(t, []byte("vb"), kvs[1].Value)
}

func TestBatchGetSnapshotBoundary(t *testing.T) {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("k"), []byte("v"), 10, 15)

	kvs, _, err := BatchGet(context.Background(), mem, SnapshotIsolation, 12, [][]byte{[]byte("k")})
	require.NoError(t, err)
	assert.Empty(t, kvs)

	kvs, _, err = BatchGet(context.Background(), mem, SnapshotIsolation, 15, [][]byte{[]byte("k")})
	require.NoError(t, err)
	require.Equal(t, 1, len(kvs))
	assert.Equal(t, []byte("v"), kvs[0].Value)
}

func TestBatchGetLocked(t *testing.T) {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("k"), []byte("v"), 5, 8)
	lockKey(mem, []byte("k"), &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut})

	// A lock older than the read blocks it in both isolation levels.
	for _, isolation := range []IsolationLevel{SnapshotIsolation, ReadCommitted} {
		kvs, txnResult, err := BatchGet(context.Background(), mem, isolation, 20, [][]byte{[]byte("k")})
		require.NoError(t, err)
		assert.Empty(t, kvs)
		require.Equal(t, 1, len(txnResult.Locked))
		assert.Equal(t, []byte("k"), txnResult.Locked[0].Key)
		assert.Equal(t, uint64(10), txnResult.Locked[0].LockTs)
	}
}

func TestBatchGetLockFromFuture(t *testing.T) {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("k"), []byte("v"), 5, 8)
	lockKey(mem, []byte("k"), &Lock{Primary: []byte("k"), Ts: 30, Ttl: 3000, Kind: WriteKindPut})

	// A lock from a later transaction does not block the read.
	kvs, txnResult, err := BatchGet(context.Background(), mem, SnapshotIsolation, 20, [][]byte{[]byte("k")})
	require.NoError(t, err)
	assert.Empty(t, txnResult.Locked)
	require.Equal(t, 1, len(kvs))
	assert.Equal(t, []byte("v"), kvs[0].Value)
}

func TestBatchGetReadCommitted(t *testing.T) {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("k"), []byte("v1"), 10, 15)
	commitValue(mem, []byte("k"), []byte("v2"), 20, 25)

	kvs, _, err := BatchGet(context.Background(), mem, SnapshotIsolation, 18, [][]byte{[]byte("k")})
	require.NoError(t, err)
	require.Equal(t, 1, len(kvs))
	assert.Equal(t, []byte("v1"), kvs[0].Value)

	// Read committed sees the newest commit even from behind it.
	kvs, _, err = BatchGet(context.Background(), mem, ReadCommitted, 18, [][]byte{[]byte("k")})
	require.NoError(t, err)
	require.Equal(t, 1, len(kvs))
	assert.Equal(t, []byte("v2"), kvs[0].Value)
}

func TestCommit(t *testing.T) {
	mem := storage.NewMemStorage()
	mem.Set(engine_util.CfDefault, EncodeKey([]byte("k"), 10), []byte("v"))
	lock := &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut}
	lockKey(mem, []byte("k"), lock)

	err := Commit(context.Background(), mem, []*LockInfo{lock.Info([]byte("k"))}, 15)
	require.NoError(t, err)

	assert.Nil(t, mem.Get(engine_util.CfLock, []byte("k")))
	write, err := ParseWrite(mem.Get(engine_util.CfWrite, EncodeKey([]byte("k"), 15)))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), write.StartTS)
	assert.Equal(t, WriteKindPut, write.Kind)

	kvs, _, err := BatchGet(context.Background(), mem, SnapshotIsolation, 20, [][]byte{[]byte("k")})
	require.NoError(t, err)
	require.Equal(t, 1, len(kvs))
	assert.Equal(t, []byte("v"), kvs[0].Value)
}

func TestCommitShortValue(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut, ShortValue: []byte("inline")}
	lockKey(mem, []byte("k"), lock)

	err := Commit(context.Background(), mem, []*LockInfo{lock.Info([]byte("k"))}, 15)
	require.NoError(t, err)

	// The inline value lands in the data CF stamped with the start ts.
	assert.Equal(t, []byte("inline"), mem.Get(engine_util.CfDefault, EncodeKey([]byte("k"), 10)))

	kvs, _, err := BatchGet(context.Background(), mem, SnapshotIsolation, 20, [][]byte{[]byte("k")})
	require.NoError(t, err)
	require.Equal(t, 1, len(kvs))
	assert.Equal(t, []byte("inline"), kvs[0].Value)
}

func TestCommitIdempotent(t *testing.T) {
	mem := storage.NewMemStorage()
	mem.Set(engine_util.CfDefault, EncodeKey([]byte("k"), 10), []byte("v"))
	lock := &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut}
	lockKey(mem, []byte("k"), lock)

	info := lock.Info([]byte("k"))
	require.NoError(t, Commit(context.Background(), mem, []*LockInfo{info}, 15))
	require.NoError(t, Commit(context.Background(), mem, []*LockInfo{info}, 15))
}

func TestCommitLockNotFound(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut}

	err := Commit(context.Background(), mem, []*LockInfo{lock.Info([]byte("k"))}, 15)
	require.Error(t, err)
	assert.Equal(t, status.TxnLockNotFound, status.CodeOf(err))
}

func TestCommitAfterRollback(t *testing.T) {
	mem := storage.NewMemStorage()
	mem.Set(engine_util.CfDefault, EncodeKey([]byte("k"), 10), []byte("v"))
	lock := &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut}
	lockKey(mem, []byte("k"), lock)

	err := Rollback(context.Background(), mem, [][]byte{[]byte("k")}, nil, 10)
	require.NoError(t, err)

	err = Commit(context.Background(), mem, []*LockInfo{lock.Info([]byte("k"))}, 15)
	require.Error(t, err)
	assert.Equal(t, status.TxnLockNotFound, status.CodeOf(err))
}

func TestCommitTsBeforeLockTs(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut}
	lockKey(mem, []byte("k"), lock)

	err := Commit(context.Background(), mem, []*LockInfo{lock.Info([]byte("k"))}, 10)
	require.Error(t, err)
	assert.Equal(t, status.TxnWriteConflict, status.CodeOf(err))
}

func TestCommitLockKind(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindLock}
	lockKey(mem, []byte("k"), lock)

	err := Commit(context.Background(), mem, []*LockInfo{lock.Info([]byte("k"))}, 15)
	require.NoError(t, err)

	write, err := ParseWrite(mem.Get(engine_util.CfWrite, EncodeKey([]byte("k"), 15)))
	require.NoError(t, err)
	assert.Equal(t, WriteKindPut, write.Kind)
}

func TestRollback(t *testing.T) {
	mem := storage.NewMemStorage()
	mem.Set(engine_util.CfDefault, EncodeKey([]byte("k"), 10), []byte("v"))
	lockKey(mem, []byte("k"), &Lock{Primary: []byte("k"), Ts: 10, Ttl: 3000, Kind: WriteKindPut})

	err := Rollback(context.Background(), mem, [][]byte{[]byte("k")}, nil, 10)
	require.NoError(t, err)

	assert.Nil(t, mem.Get(engine_util.CfLock, []byte("k")))
	assert.Nil(t, mem.Get(engine_util.CfDefault, EncodeKey([]byte("k"), 10)))

	reader, err := mem.Reader(context.Background())
	require.NoError(t, err)
	defer reader.Close()
	info, err := GetRollbackInfo(reader, 10, []byte("k"))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, WriteKindRollback, info.Op)
	assert.Equal(t, uint64(10), info.CommitTs)
}

func TestRollbackKeepsOtherLock(t *testing.T) {
	mem := storage.NewMemStorage()
	other := &Lock{Primary: []byte("k"), Ts: 20, Ttl: 3000, Kind: WriteKindPut}
	lockKey(mem, []byte("k"), other)

	// Rolling back ts 10 leaves the ts 20 lock in place but still
	// writes the rollback marker.
	err := Rollback(context.Background(), mem, nil, [][]byte{[]byte("k")}, 10)
	require.NoError(t, err)

	got, err := ParseLock(mem.Get(engine_util.CfLock, []byte("k")))
	require.NoError(t, err)
	assert.Equal(t, other, got)
	assert.NotNil(t, mem.Get(engine_util.CfWrite, EncodeKey([]byte("k"), 10)))
}

func TestRollbackIdempotent(t *testing.T) {
	mem := storage.NewMemStorage()
	require.NoError(t, Rollback(context.Background(), mem, nil, [][]byte{[]byte("k")}, 10))
	require.NoError(t, Rollback(context.Background(), mem, nil, [][]byte{[]byte("k")}, 10))
}

func TestGetLockInfo(t *testing.T) {
	mem := storage.NewMemStorage()
	lock := &Lock{Primary: []byte("pk"), Ts: 10, Ttl: 3000, Kind: WriteKindPut}
	lockKey(mem, []byte("k"), lock)

	reader, err := mem.Reader(context.Background())
	require.NoError(t, err)
	defer reader.Close()

	info, err := GetLockInfo(reader, []byte("k"))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []byte("k"), info.Key)
	assert.Equal(t, []byte("pk"), info.PrimaryLock)
	assert.Equal(t, uint64(10), info.LockTs)

	info, err = GetLockInfo(reader, []byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestScanLockInfo(t *testing.T) {
	mem := storage.NewMemStorage()
	lockKey(mem, []byte("a"), &Lock{Primary: []byte("a"), Ts: 10, Kind: WriteKindPut})
	lockKey(mem, []byte("b"), &Lock{Primary: []byte("a"), Ts: 20, Kind: WriteKindPut})
	lockKey(mem, []byte("c"), &Lock{Primary: []byte("a"), Ts: 30, Kind: WriteKindPut})
	lockKey(mem, []byte("d"), &Lock{Primary: []byte("a"), Ts: 20, Kind: WriteKindPut})

	reader, err := mem.Reader(context.Background())
	require.NoError(t, err)
	defer reader.Close()

	// Timestamp window is half open.
	infos, err := ScanLockInfo(reader, 10, 30, nil, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 3, len(infos))
	assert.Equal(t, []byte("a"), infos[0].Key)
	assert.Equal(t, []byte("b"), infos[1].Key)
	assert.Equal(t, []byte("d"), infos[2].Key)

	// Key range is half open too.
	infos, err = ScanLockInfo(reader, 0, TsMax, []byte("b"), []byte("d"), 0)
	require.NoError(t, err)
	require.Equal(t, 2, len(infos))
	assert.Equal(t, []byte("b"), infos[0].Key)
	assert.Equal(t, []byte("c"), infos[1].Key)

	infos, err = ScanLockInfo(reader, 0, TsMax, nil, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, len(infos))
}

func TestGetWriteInfo(t *testing.T) {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("k"), []byte("v"), 10, 15)
	deleteValue(mem, []byte("k"), 20, 25)
	rollback := Write{StartTS: 30, Kind: WriteKindRollback}
	mem.Set(engine_util.CfWrite, EncodeKey([]byte("k"), 30), rollback.ToBytes())

	reader, err := mem.Reader(context.Background())
	require.NoError(t, err)
	defer reader.Close()

	info, err := GetWriteInfo(reader, 0, TsMax, TsMax, []byte("k"), false, true, true)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, WriteKindDelete, info.Op)
	assert.Equal(t, uint64(25), info.CommitTs)

	info, err = GetWriteInfo(reader, 0, TsMax, TsMax, []byte("k"), false, false, true)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, WriteKindPut, info.Op)
	assert.Equal(t, uint64(15), info.CommitTs)

	// The start ts filter picks the record of one transaction.
	info, err = GetWriteInfo(reader, 0, TsMax, 20, []byte("k"), true, true, true)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint64(25), info.CommitTs)

	// Commit ts below the floor stops the walk.
	info, err = GetWriteInfo(reader, 20, TsMax, 10, []byte("k"), true, true, true)
	require.NoError(t, err)
	assert.Nil(t, info)
}
