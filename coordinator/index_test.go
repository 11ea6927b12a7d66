package coordinator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

func hnswIndexDef(name string, bounds ...string) *meta.IndexDefinition {
	def := &meta.IndexDefinition{
		Name:       name,
		ReplicaNum: 3,
		Partition:  meta.PartitionRule{Strategy: meta.PartitionStrategyRange},
		Parameter: meta.IndexParameter{
			IndexType: meta.IndexTypeVector,
			VectorParam: &meta.VectorIndexParameter{
				VectorIndexType: meta.VectorIndexTypeHNSW,
				HNSW: &meta.HNSWParam{
					Dimension:      128,
					MetricType:     meta.MetricTypeL2,
					EfConstruction: 200,
					MaxElements:    100000,
					NLinks:         32,
				},
			},
		},
	}
	for i := 0; i+1 < len(bounds); i++ {
		def.Partition.Ranges = append(def.Partition.Ranges, meta.Range{
			StartKey: []byte(bounds[i]),
			EndKey:   []byte(bounds[i+1]),
		})
	}
	return def
}

func TestCreateIndexTwoPartitions(t *testing.T) {
	c := testControl(t)
	addStores(t, c, 3)
	schemaID, err := c.CreateSchema(RootSchemaID, "s1")
	require.NoError(t, err)

	indexID, err := c.CreateIndex(schemaID, hnswIndexDef("v", "a", "m", "z"))
	require.NoError(t, err)

	index, err := c.GetIndex(schemaID, indexID)
	require.NoError(t, err)
	require.Len(t, index.Partitions, 2)

	regions := c.GetRegions()
	require.Len(t, regions, 2)
	assert.Equal(t, fmt.Sprintf("I_%d_v_part_0", schemaID), regions[0].Name)
	assert.Equal(t, fmt.Sprintf("I_%d_v_part_1", schemaID), regions[1].Name)
	for _, region := range regions {
		assert.Equal(t, meta.RegionTypeIndex, region.Type)
		assert.Equal(t, indexID, region.IndexID)
		assert.Zero(t, region.TableID)
	}

	dists, err := c.GetIndexRange(schemaID, indexID)
	require.NoError(t, err)
	require.Len(t, dists, 2)
	assert.Equal(t, meta.Range{StartKey: []byte("a"), EndKey: []byte("m")}, dists[0].Range)

	require.NoError(t, c.DropIndex(schemaID, indexID))
	assert.Empty(t, c.GetRegions())
	_, err = c.GetIndex(schemaID, indexID)
	assert.Equal(t, status.IndexNotFound, status.CodeOf(err))
}

func TestCreateIndexDuplicateName(t *testing.T) {
	c := testControl(t)
	addStores(t, c, 3)
	schemaID, err := c.CreateSchema(RootSchemaID, "s1")
	require.NoError(t, err)

	_, err = c.CreateIndex(schemaID, hnswIndexDef("v", "a", "z"))
	require.NoError(t, err)
	_, err = c.CreateIndex(schemaID, hnswIndexDef("v", "a", "z"))
	assert.Equal(t, status.IndexExists, status.CodeOf(err))
}

func TestCreateIndexPartialFailure(t *testing.T) {
	c := testControl(t)
	addStores(t, c, 3)
	schemaID, err := c.CreateSchema(RootSchemaID, "s1")
	require.NoError(t, err)

	epochBefore := c.idEpochMap[EpochIndex]
	c.regionCreateInterceptor = func(regionName string) error {
		if regionName == fmt.Sprintf("I_%d_v_part_1", schemaID) {
			return fmt.Errorf("injected placement failure")
		}
		return nil
	}

	_, err = c.CreateIndex(schemaID, hnswIndexDef("v", "a", "m", "z"))
	assert.Equal(t, status.IndexRegionCreateFailed, status.CodeOf(err))
	assert.Empty(t, c.GetRegions())
	_, err = c.GetIndexByName(schemaID, "v")
	assert.Equal(t, status.IndexNotFound, status.CodeOf(err))
	assert.Equal(t, epochBefore, c.idEpochMap[EpochIndex])

	c.regionCreateInterceptor = nil
	_, err = c.CreateIndex(schemaID, hnswIndexDef("v", "a", "m", "z"))
	require.NoError(t, err)
}

func TestGetIndexes(t *testing.T) {
	c := testControl(t)
	addStores(t, c, 3)
	schemaID, err := c.CreateSchema(RootSchemaID, "s1")
	require.NoError(t, err)

	for _, name := range []string{"v1", "v2"} {
		_, err := c.CreateIndex(schemaID, hnswIndexDef(name, "a", "z"))
		require.NoError(t, err)
	}

	indexes, err := c.GetIndexes(schemaID)
	require.NoError(t, err)
	require.Len(t, indexes, 2)
	assert.Less(t, indexes[0].ID, indexes[1].ID)

	count, err := c.GetIndexesCount(schemaID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	byName, err := c.GetIndexByName(schemaID, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", byName.Definition.Name)
}

func TestCreateIndexWithReservedID(t *testing.T) {
	c := testControl(t)
	addStores(t, c, 3)
	schemaID, err := c.CreateSchema(RootSchemaID, "s1")
	require.NoError(t, err)

	reserved, err := c.CreateIndexID()
	require.NoError(t, err)
	indexID, err := c.CreateIndexWithID(schemaID, reserved, hnswIndexDef("v", "a", "z"))
	require.NoError(t, err)
	assert.Equal(t, reserved, indexID)

	_, err = c.CreateIndexWithID(schemaID, 0, hnswIndexDef("v2", "a", "z"))
	assert.Equal(t, status.IllegalParameters, status.CodeOf(err))
}
