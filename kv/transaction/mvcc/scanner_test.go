package mvcc

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

func scanStorage() *storage.MemStorage {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("a"), []byte("va"), 10, 15)
	commitValue(mem, []byte("b"), []byte("vb"), 10, 15)
	commitValue(mem, []byte("c"), []byte("vc"), 10, 15)
	commitValue(mem, []byte("d"), []byte("vd"), 10, 15)
	commitValue(mem, []byte("e"), []byte("ve"), 10, 15)
	return mem
}

func scanKeys(kvs []KeyValue) []string {
	var keys []string
	for _, kv := range kvs {
		keys = append(keys, string(kv.Key))
	}
	return keys
}

func TestScanAll(t *testing.T) {
	mem := scanStorage()

	kvs, txnResult, hasMore, endKey, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, txnResult.Locked)
	assert.False(t, hasMore)
	assert.Empty(t, endKey)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, scanKeys(kvs))
	assert.Equal(t, []byte("va"), kvs[0].Value)
}

func TestScanRange(t *testing.T) {
	mem := scanStorage()

	kvs, _, hasMore, endKey, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{StartKey: []byte("b"), EndKey: []byte("d")}, ScanOptions{})
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Equal(t, []byte("d"), endKey)
	assert.Equal(t, []string{"b", "c"}, scanKeys(kvs))
}

func TestScanLimitResume(t *testing.T) {
	mem := scanStorage()

	kvs, _, hasMore, endKey, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{Limit: 2})
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Equal(t, []byte("c"), endKey)
	assert.Equal(t, []string{"a", "b"}, scanKeys(kvs))

	// The returned end key resumes the scan without gaps or repeats.
	kvs, _, hasMore, endKey, err = Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{StartKey: endKey}, ScanOptions{Limit: 2})
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Equal(t, []byte("e"), endKey)
	assert.Equal(t, []string{"c", "d"}, scanKeys(kvs))

	kvs, _, hasMore, _, err = Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{StartKey: endKey}, ScanOptions{Limit: 2})
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Equal(t, []string{"e"}, scanKeys(kvs))
}

func TestScanReverse(t *testing.T) {
	mem := scanStorage()

	kvs, _, hasMore, endKey, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{StartKey: []byte("a"), EndKey: []byte("d")}, ScanOptions{Reverse: true})
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Equal(t, []byte("a"), endKey)
	assert.Equal(t, []string{"c", "b", "a"}, scanKeys(kvs))
}

func TestScanReverseLimitResume(t *testing.T) {
	mem := scanStorage()

	kvs, _, hasMore, endKey, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{StartKey: []byte("a"), EndKey: []byte("f")}, ScanOptions{Reverse: true, Limit: 2})
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Equal(t, []byte("c"), endKey)
	assert.Equal(t, []string{"e", "d"}, scanKeys(kvs))
}

func TestScanReverseUnbounded(t *testing.T) {
	mem := scanStorage()

	_, _, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{StartKey: []byte("a")}, ScanOptions{Reverse: true})
	require.Error(t, err)
	assert.Equal(t, status.IllegalParameters, status.CodeOf(err))
}

func TestScanSnapshot(t *testing.T) {
	mem := scanStorage()
	commitValue(mem, []byte("c"), []byte("vc2"), 30, 35)
	commitValue(mem, []byte("f"), []byte("vf"), 30, 35)

	kvs, _, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, scanKeys(kvs))
	assert.Equal(t, []byte("vc"), kvs[2].Value)

	kvs, _, _, _, err = Scan(context.Background(), mem, ReadCommitted, 20,
		meta.Range{}, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, scanKeys(kvs))
	assert.Equal(t, []byte("vc2"), kvs[2].Value)
}

func TestScanSkipsDeleted(t *testing.T) {
	mem := scanStorage()
	deleteValue(mem, []byte("c"), 16, 17)

	kvs, _, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d", "e"}, scanKeys(kvs))
}

func TestScanLocked(t *testing.T) {
	mem := scanStorage()
	lockKey(mem, []byte("c"), &Lock{Primary: []byte("c"), Ts: 12, Ttl: 3000, Kind: WriteKindPut})

	kvs, txnResult, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d", "e"}, scanKeys(kvs))
	require.Equal(t, 1, len(txnResult.Locked))
	assert.Equal(t, []byte("c"), txnResult.Locked[0].Key)
	assert.Equal(t, uint64(12), txnResult.Locked[0].LockTs)
}

func TestScanLockOnlyKey(t *testing.T) {
	mem := scanStorage()
	// A key with a lock but no committed write yet.
	lockKey(mem, []byte("bb"), &Lock{Primary: []byte("bb"), Ts: 12, Ttl: 3000, Kind: WriteKindPut})

	kvs, txnResult, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, scanKeys(kvs))
	require.Equal(t, 1, len(txnResult.Locked))
	assert.Equal(t, []byte("bb"), txnResult.Locked[0].Key)
}

func TestScanFutureLockIgnored(t *testing.T) {
	mem := scanStorage()
	lockKey(mem, []byte("c"), &Lock{Primary: []byte("c"), Ts: 30, Ttl: 3000, Kind: WriteKindPut})

	kvs, txnResult, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, txnResult.Locked)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, scanKeys(kvs))
}

func TestScanKeyOnly(t *testing.T) {
	mem := scanStorage()

	kvs, _, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{KeyOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, scanKeys(kvs))
	for _, kv := range kvs {
		assert.Nil(t, kv.Value)
	}
}

type prefixFilter struct {
	prefix []byte
}

func (f prefixFilter) Apply(key, value []byte) ([]byte, bool, error) {
	if !bytes.HasPrefix(value, f.prefix) {
		return nil, false, nil
	}
	return bytes.TrimPrefix(value, f.prefix), true, nil
}

func TestScanCoprocessor(t *testing.T) {
	mem := storage.NewMemStorage()
	commitValue(mem, []byte("a"), []byte("x:1"), 10, 15)
	commitValue(mem, []byte("b"), []byte("y:2"), 10, 15)
	commitValue(mem, []byte("c"), []byte("x:3"), 10, 15)

	kvs, _, _, _, err := Scan(context.Background(), mem, SnapshotIsolation, 20,
		meta.Range{}, ScanOptions{Coprocessor: prefixFilter{prefix: []byte("x:")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, scanKeys(kvs))
	assert.Equal(t, []byte("1"), kvs[0].Value)
	assert.Equal(t, []byte("3"), kvs[1].Value)
}
