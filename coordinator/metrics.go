package coordinator

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

// GetRegionMetrics returns the last reported metrics of a region, or
// nil when the region never reported.
func (c *Control) GetRegionMetrics(regionID uint64) *meta.RegionMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.regionMetricsMap[regionID]
	if !ok {
		return nil
	}
	out := *m
	out.MinKey = append([]byte(nil), m.MinKey...)
	out.MaxKey = append([]byte(nil), m.MaxKey...)
	return &out
}

// GetTableMetrics returns the aggregated metrics of a table. The value
// is memoized; the refresh loop and explicit recalculation replace it.
func (c *Control) GetTableMetrics(schemaID, tableID uint64) (*meta.TableMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	table, ok := c.tableMap[tableID]
	if !ok || table.SchemaID != schemaID {
		return nil, status.New(status.TableNotFound,
			"table %d not found in schema %d", tableID, schemaID).Err()
	}
	if m, ok := c.tableMetricsMap[tableID]; ok {
		out := *m
		return &out, nil
	}
	m, err := c.aggregateMetricsLocked(table.Partitions)
	if err != nil {
		return nil, status.New(status.TableMetricsFailed,
			"metrics for table %d: %s", tableID, err).Err()
	}
	c.tableMetricsMap[tableID] = m
	out := *m
	return &out, nil
}

// GetIndexMetrics returns the aggregated metrics of an index.
func (c *Control) GetIndexMetrics(schemaID, indexID uint64) (*meta.IndexMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	index, ok := c.indexMap[indexID]
	if !ok || index.SchemaID != schemaID {
		return nil, status.New(status.IndexNotFound,
			"index %d not found in schema %d", indexID, schemaID).Err()
	}
	if m, ok := c.indexMetricsMap[indexID]; ok {
		out := meta.IndexMetrics(*m)
		return &out, nil
	}
	agg, err := c.aggregateMetricsLocked(index.Partitions)
	if err != nil {
		return nil, status.New(status.IndexMetricsFailed,
			"metrics for index %d: %s", indexID, err).Err()
	}
	m := meta.IndexMetrics(*agg)
	c.indexMetricsMap[indexID] = &m
	out := m
	return &out, nil
}

// aggregateMetricsLocked folds the reported region metrics of the given
// partitions. Partitions whose regions have not reported yet are
// skipped; their rows will show up after the next store report.
func (c *Control) aggregateMetricsLocked(partitions []meta.Partition) (*meta.TableMetrics, error) {
	agg := &meta.TableMetrics{
		MinKey:    meta.InitialMinKey(),
		MaxKey:    meta.InitialMaxKey(),
		PartCount: int32(len(partitions)),
	}
	for _, part := range partitions {
		if _, ok := c.regionMap[part.RegionID]; !ok {
			return nil, status.New(status.RegionNotFound,
				"partition region %d not found", part.RegionID).Err()
		}
		m, ok := c.regionMetricsMap[part.RegionID]
		if !ok {
			log.Warn("partition region has not reported metrics yet",
				zap.Uint64("regionID", part.RegionID))
			continue
		}
		agg.MergeRegion(m)
	}
	return agg, nil
}

// CalculateTableMetrics recomputes the metrics of every table and
// evicts entries for tables that no longer exist.
func (c *Control) CalculateTableMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.tableMetricsMap {
		if _, ok := c.tableMap[id]; !ok {
			delete(c.tableMetricsMap, id)
		}
	}
	for id, table := range c.tableMap {
		m, err := c.aggregateMetricsLocked(table.Partitions)
		if err != nil {
			log.Warn("table metrics refresh failed",
				zap.Uint64("tableID", id), zap.Error(err))
			delete(c.tableMetricsMap, id)
			continue
		}
		c.tableMetricsMap[id] = m
	}
}

// CalculateIndexMetrics recomputes the metrics of every index and
// evicts entries for indexes that no longer exist.
func (c *Control) CalculateIndexMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.indexMetricsMap {
		if _, ok := c.indexMap[id]; !ok {
			delete(c.indexMetricsMap, id)
		}
	}
	for id, index := range c.indexMap {
		agg, err := c.aggregateMetricsLocked(index.Partitions)
		if err != nil {
			log.Warn("index metrics refresh failed",
				zap.Uint64("indexID", id), zap.Error(err))
			delete(c.indexMetricsMap, id)
			continue
		}
		m := meta.IndexMetrics(*agg)
		c.indexMetricsMap[id] = &m
	}
}
