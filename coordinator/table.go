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

const defaultReplicaNum int32 = 3

// CreateTableID reserves a table id without creating a table, for
// callers that want to know the id up front.
func (c *Control) CreateTableID() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inc := new(MetaIncrement)
	id := c.getNextID(IDNextTable, inc)
	if err := c.submitMetaIncrement(inc); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateTable creates a table with its regions and returns the table
// id. On any partial failure nothing is persisted: the staging name is
// released and no region survives.
func (c *Control) CreateTable(schemaID uint64, def *meta.TableDefinition) (uint64, error) {
	return c.createTable(schemaID, 0, def)
}

// CreateTableWithID creates a table under an id previously reserved
// with CreateTableID.
func (c *Control) CreateTableWithID(schemaID, tableID uint64, def *meta.TableDefinition) (uint64, error) {
	if tableID == 0 {
		return 0, status.New(status.IllegalParameters, "table id must be set").Err()
	}
	return c.createTable(schemaID, tableID, def)
}

func (c *Control) createTable(schemaID, presetID uint64, def *meta.TableDefinition) (uint64, error) {
	if schemaID == RootSchemaID {
		return 0, status.New(status.IllegalParameters,
			"tables cannot be created under the root schema").Err()
	}
	if err := validateTableDefinition(def); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.schemaMap[schemaID]; !ok {
		return 0, status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}

	inc := new(MetaIncrement)
	tableID := presetID
	if tableID == 0 {
		tableID = c.getNextID(IDNextTable, inc)
	}

	name := scopedName(schemaID, def.Name)
	if !c.stagingTableNames.PutIfAbsent(name, tableID) {
		return 0, status.New(status.TableExists,
			"table %q already exists in schema %d", def.Name, schemaID).Err()
	}

	replica := def.ReplicaNum
	if replica <= 0 {
		replica = defaultReplicaNum
	}

	if def.WithAutoIncrement() && c.autoInc != nil {
		start := def.AutoIncrement
		if start == 0 {
			start = 1
		}
		if err := c.autoInc.CreateAutoIncrement(context.Background(), tableID, start); err != nil {
			c.stagingTableNames.Erase(name)
			return 0, status.New(status.AutoIncrementWhileCreatingTable,
				"auto increment for table %d: %s", tableID, err).Err()
		}
	}

	partitions := make([]meta.Partition, 0, len(def.Partition.Ranges))
	for i, rng := range def.Partition.Ranges {
		regionName := fmt.Sprintf("T_%d_%s_part_%d", schemaID, def.Name, i)
		regionID, err := c.buildRegion(inc, regionName, meta.RegionTypeStore, replica,
			rng, schemaID, tableID, 0)
		if err != nil {
			c.stagingTableNames.Erase(name)
			c.rollbackAutoIncrement(tableID, def.WithAutoIncrement())
			log.Warn("table creation rolled back",
				zap.Uint64("schemaID", schemaID),
				zap.String("table", def.Name),
				zap.String("failedRegion", regionName),
				zap.Error(err))
			return 0, status.New(status.TableRegionCreateFailed,
				"region %q for table %q: %s", regionName, def.Name, err).Err()
		}
		partitions = append(partitions, meta.Partition{RegionID: regionID})
	}

	c.getNextID(EpochRegion, inc)
	c.getNextID(EpochTable, inc)
	inc.Tables = append(inc.Tables, TableIncrement{
		Op: OpCreate,
		Table: TableInternal{
			ID:         tableID,
			SchemaID:   schemaID,
			Definition: *def,
			Partitions: partitions,
		},
	})
	if err := c.submitMetaIncrement(inc); err != nil {
		c.stagingTableNames.Erase(name)
		c.rollbackAutoIncrement(tableID, def.WithAutoIncrement())
		return 0, err
	}
	log.Info("table created",
		zap.Uint64("schemaID", schemaID),
		zap.Uint64("tableID", tableID),
		zap.String("name", def.Name),
		zap.Int("partitions", len(partitions)))
	return tableID, nil
}

func (c *Control) rollbackAutoIncrement(tableID uint64, withAutoIncrement bool) {
	if withAutoIncrement && c.autoInc != nil {
		c.deleteAutoIncrementAsync(tableID)
	}
}

// deleteAutoIncrementAsync hands the sequence delete to the background
// worker so the metadata path never blocks on it.
func (c *Control) deleteAutoIncrementAsync(tableID uint64) {
	c.autoIncWorker.Sender() <- autoIncDeleteTask{entityID: tableID}
}

// DropTable removes the table and all its regions in one increment.
func (c *Control) DropTable(schemaID, tableID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, ok := c.tableMap[tableID]
	if !ok || table.SchemaID != schemaID {
		return status.New(status.TableNotFound,
			"table %d not found in schema %d", tableID, schemaID).Err()
	}

	inc := new(MetaIncrement)
	for _, part := range table.Partitions {
		region, ok := c.regionMap[part.RegionID]
		if !ok {
			log.Warn("table partition region already gone",
				zap.Uint64("tableID", tableID), zap.Uint64("regionID", part.RegionID))
			continue
		}
		inc.Regions = append(inc.Regions, RegionIncrement{Op: OpDelete, Region: *region})
	}
	c.getNextID(EpochRegion, inc)
	c.getNextID(EpochTable, inc)
	inc.Tables = append(inc.Tables, TableIncrement{Op: OpDelete, Table: *table})
	if err := c.submitMetaIncrement(inc); err != nil {
		return err
	}
	c.stagingTableNames.Erase(scopedName(schemaID, table.Definition.Name))
	if table.Definition.WithAutoIncrement() && c.autoInc != nil {
		c.deleteAutoIncrementAsync(tableID)
	}
	log.Info("table dropped", zap.Uint64("schemaID", schemaID), zap.Uint64("tableID", tableID))
	return nil
}

// GetTable returns a copy of the table record.
func (c *Control) GetTable(schemaID, tableID uint64) (*TableInternal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.getTableLocked(schemaID, tableID)
}

func (c *Control) getTableLocked(schemaID, tableID uint64) (*TableInternal, error) {
	table, ok := c.tableMap[tableID]
	if !ok || table.SchemaID != schemaID {
		return nil, status.New(status.TableNotFound,
			"table %d not found in schema %d", tableID, schemaID).Err()
	}
	out := *table
	out.Partitions = append([]meta.Partition(nil), table.Partitions...)
	return &out, nil
}

// GetTables lists the tables of a schema sorted by id.
func (c *Control) GetTables(schemaID uint64) ([]*TableInternal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.schemaMap[schemaID]
	if !ok {
		return nil, status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}
	tables := make([]*TableInternal, 0, len(schema.TableIDs))
	for _, id := range schema.TableIDs {
		if table, ok := c.tableMap[id]; ok {
			out := *table
			out.Partitions = append([]meta.Partition(nil), table.Partitions...)
			tables = append(tables, &out)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	return tables, nil
}

// GetTablesCount returns the number of tables in a schema.
func (c *Control) GetTablesCount(schemaID uint64) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.schemaMap[schemaID]
	if !ok {
		return 0, status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}
	return len(schema.TableIDs), nil
}

// GetTableByName resolves a table through the authoritative name map.
func (c *Control) GetTableByName(schemaID uint64, name string) (*TableInternal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.tableNameMap[scopedName(schemaID, name)]
	if !ok {
		return nil, status.New(status.TableNotFound,
			"table %q not found in schema %d", name, schemaID).Err()
	}
	return c.getTableLocked(schemaID, id)
}

// GetTableRange returns the per-partition range distribution of the
// table: region range, leader location, voter and learner locations.
func (c *Control) GetTableRange(schemaID, tableID uint64) ([]meta.RangeDistribution, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, ok := c.tableMap[tableID]
	if !ok || table.SchemaID != schemaID {
		return nil, status.New(status.TableNotFound,
			"table %d not found in schema %d", tableID, schemaID).Err()
	}
	return c.rangeDistributionLocked(table.Partitions)
}

func (c *Control) rangeDistributionLocked(partitions []meta.Partition) ([]meta.RangeDistribution, error) {
	dists := make([]meta.RangeDistribution, 0, len(partitions))
	for _, part := range partitions {
		region, ok := c.regionMap[part.RegionID]
		if !ok {
			return nil, status.New(status.RegionNotFound,
				"partition region %d not found", part.RegionID).Err()
		}
		dist := meta.RangeDistribution{
			RegionID:    region.ID,
			Range:       region.Range,
			RegionEpoch: region.Epoch,
		}
		for _, peer := range region.Peers {
			switch peer.Role {
			case meta.RoleVoter:
				dist.VoterLocations = append(dist.VoterLocations, peer.ServerLocation)
			case meta.RoleLearner:
				dist.LearnerLocations = append(dist.LearnerLocations, peer.ServerLocation)
			}
			if peer.StoreID == region.LeaderStoreID {
				dist.LeaderLocation = peer.ServerLocation
			}
		}
		dists = append(dists, dist)
	}
	return dists, nil
}
