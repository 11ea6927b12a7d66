package standalone_storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/dingokv/kv/config"
	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/util/engine_util"
)

func newTestStorage(t *testing.T) *StandAloneStorage {
	conf := config.NewTestConfig()
	conf.DBPath = t.TempDir()
	s := NewStandAloneStorage(conf)
	require.Nil(t, s.Start())
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestWriteThenRead(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.Write(ctx, []storage.Modify{
		{Data: storage.Put{Cf: engine_util.CfDefault, Key: []byte("a"), Value: []byte("1")}},
		{Data: storage.Put{Cf: engine_util.CfLock, Key: []byte("a"), Value: []byte("2")}},
	})
	require.Nil(t, err)

	reader, err := s.Reader(ctx)
	require.Nil(t, err)
	defer reader.Close()

	val, err := reader.GetCF(engine_util.CfDefault, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("1"), val)

	val, err = reader.GetCF(engine_util.CfLock, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("2"), val)

	val, err = reader.GetCF(engine_util.CfWrite, []byte("a"))
	require.Nil(t, err)
	assert.Nil(t, val)
}

func TestDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.Nil(t, s.Write(ctx, []storage.Modify{
		{Data: storage.Put{Cf: engine_util.CfDefault, Key: []byte("a"), Value: []byte("1")}},
	}))
	require.Nil(t, s.Write(ctx, []storage.Modify{
		{Data: storage.Delete{Cf: engine_util.CfDefault, Key: []byte("a")}},
	}))

	reader, err := s.Reader(ctx)
	require.Nil(t, err)
	defer reader.Close()

	val, err := reader.GetCF(engine_util.CfDefault, []byte("a"))
	require.Nil(t, err)
	assert.Nil(t, val)
}

func TestIterators(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	var batch []storage.Modify
	for _, k := range []string{"a", "b", "c"} {
		batch = append(batch, storage.Modify{
			Data: storage.Put{Cf: engine_util.CfDefault, Key: []byte(k), Value: []byte(k)},
		})
	}
	require.Nil(t, s.Write(ctx, batch))

	reader, err := s.Reader(ctx)
	require.Nil(t, err)
	defer reader.Close()

	it := reader.IterCF(engine_util.CfDefault)
	var forward []string
	for it.Seek([]byte("a")); it.Valid(); it.Next() {
		forward = append(forward, string(it.Item().KeyCopy(nil)))
	}
	it.Close()
	assert.Equal(t, []string{"a", "b", "c"}, forward)

	rit := reader.IterReverseCF(engine_util.CfDefault)
	var backward []string
	for rit.Seek([]byte("c")); rit.Valid(); rit.Next() {
		backward = append(backward, string(rit.Item().KeyCopy(nil)))
	}
	rit.Close()
	assert.Equal(t, []string{"c", "b", "a"}, backward)
}
