package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeRawKey(t *testing.T) {
	assert.Equal(t, []byte("wfoo"), EncodeRawKey([]byte("foo")))
	assert.Equal(t, []byte("w"), EncodeRawKey(nil))
}

func TestPrefixNext(t *testing.T) {
	assert.Equal(t, []byte("ab\x00"), PrefixNext([]byte("ab")))
	assert.Equal(t, []byte{0}, PrefixNext(nil))
}

func TestRangeContains(t *testing.T) {
	r := Range{StartKey: []byte("b"), EndKey: []byte("d")}
	assert.False(t, r.Contains([]byte("a")))
	assert.True(t, r.Contains([]byte("b")))
	assert.True(t, r.Contains([]byte("c")))
	assert.False(t, r.Contains([]byte("d")))

	open := Range{StartKey: []byte("b")}
	assert.True(t, open.Contains([]byte("zzzz")))
}

func TestLeaderPeer(t *testing.T) {
	region := Region{
		LeaderStoreID: 2,
		Peers: []Peer{
			{StoreID: 1, Role: RoleVoter},
			{StoreID: 2, Role: RoleVoter},
		},
	}
	leader := region.LeaderPeer()
	assert.NotNil(t, leader)
	assert.Equal(t, uint64(2), leader.StoreID)

	region.LeaderStoreID = 9
	assert.Nil(t, region.LeaderPeer())
}

func TestTableMetricsMerge(t *testing.T) {
	m := TableMetrics{MinKey: InitialMinKey(), MaxKey: InitialMaxKey()}
	m.MergeRegion(&RegionMetrics{RowCount: 3, MinKey: []byte("b"), MaxKey: []byte("x")})
	m.MergeRegion(&RegionMetrics{RowCount: 4, MinKey: []byte("a"), MaxKey: []byte("m")})

	assert.Equal(t, int64(7), m.RowCount)
	// Ten zero bytes sort below any reported key, so the initial lower
	// bound survives; the upper bound likewise.
	assert.Equal(t, InitialMinKey(), m.MinKey)
	assert.Equal(t, InitialMaxKey(), m.MaxKey)
}

func TestWithAutoIncrement(t *testing.T) {
	def := TableDefinition{}
	assert.False(t, def.WithAutoIncrement())
	def.AutoIncrement = 100
	assert.True(t, def.WithAutoIncrement())

	def = TableDefinition{Columns: []ColumnDefinition{{Name: "id", AutoIncrement: true}}}
	assert.True(t, def.WithAutoIncrement())
}
