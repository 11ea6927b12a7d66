package meta

import "bytes"

// Metric key bounds used before any region reports real keys.
const metricKeyBoundLen = 10

// InitialMinKey returns the starting upper bound for min-key
// aggregation: ten zero bytes, larger than nothing.
func InitialMinKey() []byte {
	return make([]byte, metricKeyBoundLen)
}

// InitialMaxKey returns the starting lower bound for max-key
// aggregation: ten 0xFF bytes.
func InitialMaxKey() []byte {
	b := make([]byte, metricKeyBoundLen)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

// RegionMetrics is the per-region usage snapshot reported by stores.
type RegionMetrics struct {
	RegionID uint64 `json:"region_id"`
	RowCount int64  `json:"row_count"`
	MinKey   []byte `json:"min_key"`
	MaxKey   []byte `json:"max_key"`
	Size     int64  `json:"size"`
}

// TableMetrics is the aggregate over all regions of a table.
type TableMetrics struct {
	RowCount  int64  `json:"row_count"`
	MinKey    []byte `json:"min_key"`
	MaxKey    []byte `json:"max_key"`
	PartCount int32  `json:"part_count"`
}

// IndexMetrics is the aggregate over all regions of an index.
type IndexMetrics struct {
	RowCount  int64  `json:"row_count"`
	MinKey    []byte `json:"min_key"`
	MaxKey    []byte `json:"max_key"`
	PartCount int32  `json:"part_count"`
}

// MergeRegion folds one region's metrics into the table aggregate.
// Keys are compared lexicographically against the current bounds.
func (m *TableMetrics) MergeRegion(r *RegionMetrics) {
	m.RowCount += r.RowCount
	if len(m.MinKey) == 0 || bytes.Compare(r.MinKey, m.MinKey) < 0 {
		m.MinKey = append([]byte(nil), r.MinKey...)
	}
	if len(m.MaxKey) == 0 || bytes.Compare(r.MaxKey, m.MaxKey) > 0 {
		m.MaxKey = append([]byte(nil), r.MaxKey...)
	}
}

// MergeRegion folds one region's metrics into the index aggregate.
func (m *IndexMetrics) MergeRegion(r *RegionMetrics) {
	m.RowCount += r.RowCount
	if len(m.MinKey) == 0 || bytes.Compare(r.MinKey, m.MinKey) < 0 {
		m.MinKey = append([]byte(nil), r.MinKey...)
	}
	if len(m.MaxKey) == 0 || bytes.Compare(r.MaxKey, m.MaxKey) > 0 {
		m.MaxKey = append([]byte(nil), r.MaxKey...)
	}
}
