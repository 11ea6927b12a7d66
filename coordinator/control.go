// Package coordinator implements the cluster metadata control plane:
// monotonic id and epoch counters, the schema/table/index/region
// hierarchy, index definition validation, region partitioning, and
// table/index metrics aggregation. All mutations are serialized through
// MetaIncrement log records; the in-memory maps are the applied state
// of that log.
package coordinator

import (
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/kv/util/worker"
	"github.com/dingodb/dingokv/meta"
)

// Build identity, overridden at link time.
var (
	GitCommitHash = "unknown"
	GitTagName    = "unknown"
	BuildTime     = "unknown"
	Version       = "dev"
)

// Control owns the authoritative cluster metadata. It is single-writer:
// every mutating operation holds the mutex while it builds a
// MetaIncrement, appends it to the log, and applies it. The staging
// name maps are the only state mutated before an increment commits.
type Control struct {
	mu sync.RWMutex

	idEpochMap map[IdEpochKind]uint64
	schemaMap  map[uint64]*meta.Schema
	tableMap   map[uint64]*TableInternal
	indexMap   map[uint64]*IndexInternal
	regionMap  map[uint64]*meta.Region
	storeMap   map[uint64]*meta.Store

	schemaNameMap map[string]uint64
	tableNameMap  map[string]uint64
	indexNameMap  map[string]uint64

	regionMetricsMap map[uint64]*meta.RegionMetrics
	tableMetricsMap  map[uint64]*meta.TableMetrics
	indexMetricsMap  map[uint64]*meta.IndexMetrics

	stagingSchemaNames *NameMap
	stagingTableNames  *NameMap
	stagingIndexNames  *NameMap

	store    *metaStore
	logIndex uint64

	autoInc       AutoIncrementControl
	autoIncWorker *worker.Worker

	// Exercised by tests to fail region creation partway through a
	// create-table.
	regionCreateInterceptor func(regionName string) error

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewControl opens (or creates) a coordinator whose state is persisted
// under path. An empty path keeps the state in memory only, which is
// what the tests use.
func NewControl(path string, autoInc AutoIncrementControl) (*Control, error) {
	c := &Control{
		idEpochMap:         initialIdEpochs(),
		schemaMap:          make(map[uint64]*meta.Schema),
		tableMap:           make(map[uint64]*TableInternal),
		indexMap:           make(map[uint64]*IndexInternal),
		regionMap:          make(map[uint64]*meta.Region),
		storeMap:           make(map[uint64]*meta.Store),
		schemaNameMap:      make(map[string]uint64),
		tableNameMap:       make(map[string]uint64),
		indexNameMap:       make(map[string]uint64),
		regionMetricsMap:   make(map[uint64]*meta.RegionMetrics),
		tableMetricsMap:    make(map[uint64]*meta.TableMetrics),
		indexMetricsMap:    make(map[uint64]*meta.IndexMetrics),
		stagingSchemaNames: NewNameMap(),
		stagingTableNames:  NewNameMap(),
		stagingIndexNames:  NewNameMap(),
		autoInc:            autoInc,
		quit:               make(chan struct{}),
	}
	c.bootstrapSchemas()
	c.autoIncWorker = worker.NewWorker("auto-increment-delete", &c.wg)
	c.autoIncWorker.Start(&autoIncDeleteHandler{autoInc: autoInc})

	if path != "" {
		store, err := openMetaStore(path)
		if err != nil {
			c.autoIncWorker.Stop()
			c.wg.Wait()
			return nil, err
		}
		c.store = store
		if err := c.recover(); err != nil {
			store.close()
			c.autoIncWorker.Stop()
			c.wg.Wait()
			return nil, err
		}
	}
	return c, nil
}

// Close stops the background refresher, snapshots the state and closes
// the backing store.
func (c *Control) Close() error {
	close(c.quit)
	c.autoIncWorker.Stop()
	c.wg.Wait()
	if c.store == nil {
		return nil
	}
	c.mu.Lock()
	snap := c.snapshot()
	c.mu.Unlock()
	if err := c.store.saveSnapshot(snap); err != nil {
		log.Error("snapshot on close failed", zap.Error(err))
	}
	return c.store.close()
}

// Run starts the periodic metrics refresh loop.
func (c *Control) Run(interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CalculateTableMetrics()
				c.CalculateIndexMetrics()
			case <-c.quit:
				return
			}
		}
	}()
}

// Hello reports the build identity of the coordinator.
func (c *Control) Hello() meta.VersionInfo {
	return meta.VersionInfo{
		GitCommitHash: GitCommitHash,
		GitTagName:    GitTagName,
		BuildTime:     BuildTime,
		Version:       Version,
	}
}

// bootstrapSchemas seeds the reserved schemas present from first boot.
func (c *Control) bootstrapSchemas() {
	for id, name := range map[uint64]string{
		RootSchemaID:        "ROOT",
		MetaSchemaID:        "META",
		DingoSchemaID:       "DINGO",
		MysqlSchemaID:       "MYSQL",
		InformationSchemaID: "INFORMATION_SCHEMA",
	} {
		schema := &meta.Schema{ID: id, Name: name, ParentID: RootSchemaID}
		c.schemaMap[id] = schema
		c.schemaNameMap[name] = id
		c.stagingSchemaNames.PutIfAbsent(name, id)
	}
}

// recover rebuilds the in-memory maps from the persisted snapshot and
// the log entries past it.
func (c *Control) recover() error {
	snap, err := c.store.loadSnapshot()
	if err != nil {
		return err
	}
	if snap != nil {
		c.restore(snap)
	}
	replayed := 0
	err = c.store.replay(c.logIndex, func(index uint64, inc *MetaIncrement) error {
		c.applyMetaIncrement(inc)
		c.logIndex = index
		replayed++
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("coordinator state recovered",
		zap.Uint64("logIndex", c.logIndex),
		zap.Int("replayed", replayed),
		zap.Int("schemas", len(c.schemaMap)),
		zap.Int("tables", len(c.tableMap)),
		zap.Int("regions", len(c.regionMap)))
	return nil
}

func (c *Control) restore(snap *metaSnapshot) {
	c.logIndex = snap.LogIndex
	for kind, value := range snap.IdEpochs {
		if value > c.idEpochMap[kind] {
			c.idEpochMap[kind] = value
		}
	}
	for i := range snap.Schemas {
		schema := snap.Schemas[i]
		c.schemaMap[schema.ID] = &schema
		c.schemaNameMap[schema.Name] = schema.ID
		c.stagingSchemaNames.PutIfAbsent(schema.Name, schema.ID)
	}
	for i := range snap.Tables {
		table := snap.Tables[i]
		c.tableMap[table.ID] = &table
		name := scopedName(table.SchemaID, table.Definition.Name)
		c.tableNameMap[name] = table.ID
		c.stagingTableNames.PutIfAbsent(name, table.ID)
	}
	for i := range snap.Indexes {
		index := snap.Indexes[i]
		c.indexMap[index.ID] = &index
		name := scopedName(index.SchemaID, index.Definition.Name)
		c.indexNameMap[name] = index.ID
		c.stagingIndexNames.PutIfAbsent(name, index.ID)
	}
	for i := range snap.Regions {
		region := snap.Regions[i]
		c.regionMap[region.ID] = &region
	}
	for i := range snap.Stores {
		store := snap.Stores[i]
		c.storeMap[store.ID] = &store
	}
	for id, m := range snap.Metrics {
		c.regionMetricsMap[id] = m
	}
}

func (c *Control) snapshot() *metaSnapshot {
	snap := &metaSnapshot{
		LogIndex: c.logIndex,
		IdEpochs: make(map[IdEpochKind]uint64, len(c.idEpochMap)),
		Metrics:  make(map[uint64]*meta.RegionMetrics, len(c.regionMetricsMap)),
	}
	for kind, value := range c.idEpochMap {
		snap.IdEpochs[kind] = value
	}
	for _, schema := range c.schemaMap {
		snap.Schemas = append(snap.Schemas, *schema)
	}
	for _, table := range c.tableMap {
		snap.Tables = append(snap.Tables, *table)
	}
	for _, index := range c.indexMap {
		snap.Indexes = append(snap.Indexes, *index)
	}
	for _, region := range c.regionMap {
		snap.Regions = append(snap.Regions, *region)
	}
	for _, store := range c.storeMap {
		snap.Stores = append(snap.Stores, *store)
	}
	for id, m := range c.regionMetricsMap {
		snap.Metrics[id] = m
	}
	return snap
}

// getNextID draws the next value of a counter and records the bump in
// the increment. Repeated draws of the same kind within one increment
// keep bumping the recorded value so replay lands on the same counter.
// Caller holds the write lock.
func (c *Control) getNextID(kind IdEpochKind, inc *MetaIncrement) uint64 {
	for i := range inc.IdEpochs {
		if inc.IdEpochs[i].Kind == kind {
			inc.IdEpochs[i].Value++
			return inc.IdEpochs[i].Value
		}
	}
	next := c.idEpochMap[kind] + 1
	inc.IdEpochs = append(inc.IdEpochs, IdEpochIncrement{Kind: kind, Value: next})
	return next
}

// submitMetaIncrement appends the increment to the log and applies it.
// Caller holds the write lock.
func (c *Control) submitMetaIncrement(inc *MetaIncrement) error {
	if inc.Empty() {
		return nil
	}
	next := c.logIndex + 1
	if c.store != nil {
		if err := c.store.appendIncrement(next, inc); err != nil {
			return err
		}
	}
	c.logIndex = next
	c.applyMetaIncrement(inc)
	return nil
}

// applyMetaIncrement folds one committed increment into the in-memory
// maps. Counters only move forward so replaying an old log entry can
// never regress them.
func (c *Control) applyMetaIncrement(inc *MetaIncrement) {
	for _, bump := range inc.IdEpochs {
		if bump.Value > c.idEpochMap[bump.Kind] {
			c.idEpochMap[bump.Kind] = bump.Value
		}
	}
	for _, si := range inc.Stores {
		store := si.Store
		switch si.Op {
		case OpCreate, OpUpdate:
			c.storeMap[store.ID] = &store
		case OpDelete:
			delete(c.storeMap, store.ID)
		}
	}
	for _, si := range inc.Schemas {
		schema := si.Schema
		switch si.Op {
		case OpCreate, OpUpdate:
			c.schemaMap[schema.ID] = &schema
			c.schemaNameMap[schema.Name] = schema.ID
		case OpDelete:
			delete(c.schemaMap, schema.ID)
			delete(c.schemaNameMap, schema.Name)
		}
	}
	for _, ri := range inc.Regions {
		region := ri.Region
		switch ri.Op {
		case OpCreate, OpUpdate:
			c.regionMap[region.ID] = &region
		case OpDelete:
			delete(c.regionMap, region.ID)
			delete(c.regionMetricsMap, region.ID)
		}
	}
	for _, ti := range inc.Tables {
		table := ti.Table
		name := scopedName(table.SchemaID, table.Definition.Name)
		switch ti.Op {
		case OpCreate, OpUpdate:
			c.tableMap[table.ID] = &table
			c.tableNameMap[name] = table.ID
			if ti.Op == OpCreate {
				c.addSchemaChild(table.SchemaID, table.ID, false)
			}
		case OpDelete:
			delete(c.tableMap, table.ID)
			delete(c.tableNameMap, name)
			delete(c.tableMetricsMap, table.ID)
			c.removeSchemaChild(table.SchemaID, table.ID, false)
		}
	}
	for _, ii := range inc.Indexes {
		index := ii.Index
		name := scopedName(index.SchemaID, index.Definition.Name)
		switch ii.Op {
		case OpCreate, OpUpdate:
			c.indexMap[index.ID] = &index
			c.indexNameMap[name] = index.ID
			if ii.Op == OpCreate {
				c.addSchemaChild(index.SchemaID, index.ID, true)
			}
		case OpDelete:
			delete(c.indexMap, index.ID)
			delete(c.indexNameMap, name)
			delete(c.indexMetricsMap, index.ID)
			c.removeSchemaChild(index.SchemaID, index.ID, true)
		}
	}
}

func (c *Control) addSchemaChild(schemaID, childID uint64, isIndex bool) {
	schema, ok := c.schemaMap[schemaID]
	if !ok {
		log.Warn("child applied against missing schema",
			zap.Uint64("schemaID", schemaID), zap.Uint64("childID", childID))
		return
	}
	if isIndex {
		schema.IndexIDs = append(schema.IndexIDs, childID)
	} else {
		schema.TableIDs = append(schema.TableIDs, childID)
	}
}

func (c *Control) removeSchemaChild(schemaID, childID uint64, isIndex bool) {
	schema, ok := c.schemaMap[schemaID]
	if !ok {
		return
	}
	remove := func(ids []uint64) []uint64 {
		for i, id := range ids {
			if id == childID {
				return append(ids[:i], ids[i+1:]...)
			}
		}
		return ids
	}
	if isIndex {
		schema.IndexIDs = remove(schema.IndexIDs)
	} else {
		schema.TableIDs = remove(schema.TableIDs)
	}
}
