package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

// CreateIndexID reserves an index id without creating an index. Index
// ids are drawn from the same counter as table ids.
func (c *Control) CreateIndexID() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc := new(MetaIncrement)
	id := c.getNextID(IDNextTable, inc)
	if err := c.submitMetaIncrement(inc); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateIndex creates an index with its regions and returns the index
// id. On any partial failure nothing is persisted.
func (c *Control) CreateIndex(schemaID uint64, def *meta.IndexDefinition) (uint64, error) {
	return c.createIndex(schemaID, 0, def)
}

// CreateIndexWithID creates an index under an id previously reserved
// with CreateIndexID.
func (c *Control) CreateIndexWithID(schemaID, indexID uint64, def *meta.IndexDefinition) (uint64, error) {
	if indexID == 0 {
		return 0, status.New(status.IllegalParameters, "index id must be set").Err()
	}
	return c.createIndex(schemaID, indexID, def)
}

func (c *Control) createIndex(schemaID, presetID uint64, def *meta.IndexDefinition) (uint64, error) {
	if schemaID == RootSchemaID {
		return 0, status.New(status.IllegalParameters,
			"indexes cannot be created under the root schema").Err()
	}
	if err := validateIndexDefinition(def); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.schemaMap[schemaID]; !ok {
		return 0, status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}

	inc := new(MetaIncrement)
	indexID := presetID
	if indexID == 0 {
		indexID = c.getNextID(IDNextTable, inc)
	}

	name := scopedName(schemaID, def.Name)
	if !c.stagingIndexNames.PutIfAbsent(name, indexID) {
		return 0, status.New(status.IndexExists,
			"index %q already exists in schema %d", def.Name, schemaID).Err()
	}

	replica := def.ReplicaNum
	if replica <= 0 {
		replica = defaultReplicaNum
	}

	if def.WithAutoIncrement() && c.autoInc != nil {
		if err := c.autoInc.CreateAutoIncrement(context.Background(), indexID, def.AutoIncrement); err != nil {
			c.stagingIndexNames.Erase(name)
			return 0, status.New(status.AutoIncrementWhileCreatingTable,
				"auto increment for index %d: %s", indexID, err).Err()
		}
	}

	partitions := make([]meta.Partition, 0, len(def.Partition.Ranges))
	for i, rng := range def.Partition.Ranges {
		regionName := fmt.Sprintf("I_%d_%s_part_%d", schemaID, def.Name, i)
		regionID, err := c.buildRegion(inc, regionName, meta.RegionTypeIndex, replica,
			rng, schemaID, 0, indexID)
		if err != nil {
			c.stagingIndexNames.Erase(name)
			c.rollbackAutoIncrement(indexID, def.WithAutoIncrement())
			log.Warn("index creation rolled back",
				zap.Uint64("schemaID", schemaID),
				zap.String("index", def.Name),
				zap.String("failedRegion", regionName),
				zap.Error(err))
			return 0, status.New(status.IndexRegionCreateFailed,
				"region %q for index %q: %s", regionName, def.Name, err).Err()
		}
		partitions = append(partitions, meta.Partition{RegionID: regionID})
	}

	c.getNextID(EpochRegion, inc)
	c.getNextID(EpochIndex, inc)
	inc.Indexes = append(inc.Indexes, IndexIncrement{
		Op: OpCreate,
		Index: IndexInternal{
			ID:         indexID,
			SchemaID:   schemaID,
			Definition: *def,
			Partitions: partitions,
		},
	})
	if err := c.submitMetaIncrement(inc); err != nil {
		c.stagingIndexNames.Erase(name)
		c.rollbackAutoIncrement(indexID, def.WithAutoIncrement())
		return 0, err
	}
	log.Info("index created",
		zap.Uint64("schemaID", schemaID),
		zap.Uint64("indexID", indexID),
		zap.String("name", def.Name),
		zap.String("kind", indexKind(def)),
		zap.Int("partitions", len(partitions)))
	return indexID, nil
}

func indexKind(def *meta.IndexDefinition) string {
	if def.Parameter.IndexType == meta.IndexTypeVector && def.Parameter.VectorParam != nil {
		return def.Parameter.VectorParam.VectorIndexType.String()
	}
	if def.Parameter.IndexType == meta.IndexTypeScalar {
		return "SCALAR"
	}
	return "NONE"
}

// DropIndex removes the index and all its regions in one increment.
func (c *Control) DropIndex(schemaID, indexID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, ok := c.indexMap[indexID]
	if !ok || index.SchemaID != schemaID {
		return status.New(status.IndexNotFound,
			"index %d not found in schema %d", indexID, schemaID).Err()
	}

	inc := new(MetaIncrement)
	for _, part := range index.Partitions {
		region, ok := c.regionMap[part.RegionID]
		if !ok {
			log.Warn("index partition region already gone",
				zap.Uint64("indexID", indexID), zap.Uint64("regionID", part.RegionID))
			continue
		}
		inc.Regions = append(inc.Regions, RegionIncrement{Op: OpDelete, Region: *region})
	}
	c.getNextID(EpochRegion, inc)
	c.getNextID(EpochIndex, inc)
	inc.Indexes = append(inc.Indexes, IndexIncrement{Op: OpDelete, Index: *index})
	if err := c.submitMetaIncrement(inc); err != nil {
		return err
	}
	c.stagingIndexNames.Erase(scopedName(schemaID, index.Definition.Name))
	if index.Definition.WithAutoIncrement() && c.autoInc != nil {
		c.deleteAutoIncrementAsync(indexID)
	}
	log.Info("index dropped", zap.Uint64("schemaID", schemaID), zap.Uint64("indexID", indexID))
	return nil
}

// GetIndex returns a copy of the index record.
func (c *Control) GetIndex(schemaID, indexID uint64) (*IndexInternal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getIndexLocked(schemaID, indexID)
}

func (c *Control) getIndexLocked(schemaID, indexID uint64) (*IndexInternal, error) {
	index, ok := c.indexMap[indexID]
	if !ok || index.SchemaID != schemaID {
		return nil, status.New(status.IndexNotFound,
			"index %d not found in schema %d", indexID, schemaID).Err()
	}
	out := *index
	out.Partitions = append([]meta.Partition(nil), index.Partitions...)
	return &out, nil
}

// GetIndexes lists the indexes of a schema sorted by id.
func (c *Control) GetIndexes(schemaID uint64) ([]*IndexInternal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.schemaMap[schemaID]
	if !ok {
		return nil, status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}
	indexes := make([]*IndexInternal, 0, len(schema.IndexIDs))
	for _, id := range schema.IndexIDs {
		if index, ok := c.indexMap[id]; ok {
			out := *index
			out.Partitions = append([]meta.Partition(nil), index.Partitions...)
			indexes = append(indexes, &out)
		}
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i].ID < indexes[j].ID })
	return indexes, nil
}

// GetIndexesCount returns the number of indexes in a schema.
func (c *Control) GetIndexesCount(schemaID uint64) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.schemaMap[schemaID]
	if !ok {
		return 0, status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}
	return len(schema.IndexIDs), nil
}

// GetIndexByName resolves an index through the authoritative name map.
func (c *Control) GetIndexByName(schemaID uint64, name string) (*IndexInternal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.indexNameMap[scopedName(schemaID, name)]
	if !ok {
		return nil, status.New(status.IndexNotFound,
			"index %q not found in schema %d", name, schemaID).Err()
	}
	return c.getIndexLocked(schemaID, id)
}

// GetIndexRange returns the per-partition range distribution of the
// index.
func (c *Control) GetIndexRange(schemaID, indexID uint64) ([]meta.RangeDistribution, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	index, ok := c.indexMap[indexID]
	if !ok || index.SchemaID != schemaID {
		return nil, status.New(status.IndexNotFound,
			"index %d not found in schema %d", indexID, schemaID).Err()
	}
	return c.rangeDistributionLocked(index.Partitions)
}
