package coordinator

import (
	"sort"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

// CreateStore registers a data-plane node and returns its id.
func (c *Control) CreateStore(location meta.Location) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inc := new(MetaIncrement)
	storeID := c.getNextID(IDNextStore, inc)
	c.getNextID(EpochStore, inc)
	inc.Stores = append(inc.Stores, StoreIncrement{
		Op:    OpCreate,
		Store: meta.Store{ID: storeID, State: meta.StoreStateNormal, ServerLocation: location},
	})
	if err := c.submitMetaIncrement(inc); err != nil {
		return 0, err
	}
	log.Info("store registered", zap.Uint64("storeID", storeID),
		zap.String("host", location.Host), zap.Int32("port", location.Port))
	return storeID, nil
}

// DropStore unregisters a store. Regions with peers on it keep their
// peer entries; rebalancing is the placement layer's concern.
func (c *Control) DropStore(storeID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	store, ok := c.storeMap[storeID]
	if !ok {
		return status.New(status.IllegalParameters, "store %d not found", storeID).Err()
	}
	inc := new(MetaIncrement)
	c.getNextID(EpochStore, inc)
	inc.Stores = append(inc.Stores, StoreIncrement{Op: OpDelete, Store: *store})
	return c.submitMetaIncrement(inc)
}

// GetStores lists registered stores sorted by id.
func (c *Control) GetStores() []*meta.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var stores []*meta.Store
	for _, store := range c.storeMap {
		out := *store
		stores = append(stores, &out)
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].ID < stores[j].ID })
	return stores
}

// buildRegion places one new region on the registered stores and
// appends its create to the increment. Caller holds the write lock.
func (c *Control) buildRegion(inc *MetaIncrement, name string, regionType meta.RegionType,
	replicaNum int32, rng meta.Range, schemaID, tableID, indexID uint64) (uint64, error) {
	if c.regionCreateInterceptor != nil {
		if err := c.regionCreateInterceptor(name); err != nil {
			return 0, err
		}
	}

	var candidates []*meta.Store
	for _, store := range c.storeMap {
		if store.State == meta.StoreStateNormal {
			candidates = append(candidates, store)
		}
	}
	if int32(len(candidates)) < replicaNum {
		return 0, status.New(status.Internal,
			"need %d stores for region %q, have %d", replicaNum, name, len(candidates)).Err()
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	regionID := c.getNextID(IDNextRegion, inc)
	peers := make([]meta.Peer, 0, replicaNum)
	for _, store := range candidates[:replicaNum] {
		peers = append(peers, meta.Peer{
			StoreID:        store.ID,
			Role:           meta.RoleVoter,
			ServerLocation: store.ServerLocation,
		})
	}
	inc.Regions = append(inc.Regions, RegionIncrement{
		Op: OpCreate,
		Region: meta.Region{
			ID:            regionID,
			Name:          name,
			Type:          regionType,
			Epoch:         meta.RegionEpoch{ConfVersion: 1, Version: 1},
			Range:         rng,
			Peers:         peers,
			LeaderStoreID: peers[0].StoreID,
			SchemaID:      schemaID,
			TableID:       tableID,
			IndexID:       indexID,
		},
	})
	return regionID, nil
}

// CreateRegion creates a standalone region outside any table or index.
func (c *Control) CreateRegion(name string, regionType meta.RegionType, replicaNum int32,
	rng meta.Range) (uint64, error) {
	if replicaNum <= 0 {
		replicaNum = defaultReplicaNum
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	inc := new(MetaIncrement)
	regionID, err := c.buildRegion(inc, name, regionType, replicaNum, rng, 0, 0, 0)
	if err != nil {
		return 0, err
	}
	c.getNextID(EpochRegion, inc)
	if err := c.submitMetaIncrement(inc); err != nil {
		return 0, err
	}
	log.Info("region created", zap.Uint64("regionID", regionID), zap.String("name", name))
	return regionID, nil
}

// DropRegion removes a region from the metadata.
func (c *Control) DropRegion(regionID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	region, ok := c.regionMap[regionID]
	if !ok {
		return status.New(status.RegionNotFound, "region %d not found", regionID).Err()
	}
	inc := new(MetaIncrement)
	c.getNextID(EpochRegion, inc)
	inc.Regions = append(inc.Regions, RegionIncrement{Op: OpDelete, Region: *region})
	return c.submitMetaIncrement(inc)
}

// GetRegion returns a copy of the region.
func (c *Control) GetRegion(regionID uint64) (*meta.Region, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	region, ok := c.regionMap[regionID]
	if !ok {
		return nil, status.New(status.RegionNotFound, "region %d not found", regionID).Err()
	}
	out := *region
	out.Peers = append([]meta.Peer(nil), region.Peers...)
	return &out, nil
}

// GetRegionByKey returns the region whose range covers key. The router
// calls this on a cache miss.
func (c *Control) GetRegionByKey(key []byte) (*meta.Region, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, region := range c.regionMap {
		if region.Range.Contains(key) {
			out := *region
			out.Peers = append([]meta.Peer(nil), region.Peers...)
			return &out, nil
		}
	}
	return nil, status.New(status.RegionNotFound, "no region covers key %q", key).Err()
}

// GetRegions lists all regions sorted by id.
func (c *Control) GetRegions() []*meta.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var regions []*meta.Region
	for _, region := range c.regionMap {
		out := *region
		out.Peers = append([]meta.Peer(nil), region.Peers...)
		regions = append(regions, &out)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })
	return regions
}

// UpdateRegionMetrics records per-region usage reported by stores.
// Reports for unknown regions are dropped.
func (c *Control) UpdateRegionMetrics(reports []meta.RegionMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range reports {
		report := reports[i]
		if _, ok := c.regionMap[report.RegionID]; !ok {
			log.Warn("metrics for unknown region dropped", zap.Uint64("regionID", report.RegionID))
			continue
		}
		c.regionMetricsMap[report.RegionID] = &report
	}
}
