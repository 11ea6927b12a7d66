package meta

// SQLType enumerates the column types the store understands. Planning
// is out of scope so only the storage-relevant identity is kept.
type SQLType int32

const (
	SQLTypeUnknown SQLType = iota
	SQLTypeBool
	SQLTypeInteger
	SQLTypeBigInt
	SQLTypeFloat
	SQLTypeDouble
	SQLTypeVarchar
	SQLTypeTimestamp
	SQLTypeVector
)

// ColumnDefinition describes one column of a table.
type ColumnDefinition struct {
	Name          string  `json:"name"`
	SQLType       SQLType `json:"sql_type"`
	ElementType   SQLType `json:"element_type,omitempty"`
	Precision     int32   `json:"precision,omitempty"`
	Scale         int32   `json:"scale,omitempty"`
	Nullable      bool    `json:"nullable"`
	PrimaryKey    bool    `json:"primary_key"`
	AutoIncrement bool    `json:"auto_increment"`
}

// PartitionStrategy selects how a table is split into partitions. Only
// range partitioning is supported.
type PartitionStrategy int32

const (
	PartitionStrategyRange PartitionStrategy = iota
	PartitionStrategyHash
)

// PartitionRule carries the partitioning strategy and the range of each
// partition.
type PartitionRule struct {
	Strategy PartitionStrategy `json:"strategy"`
	Ranges   []Range           `json:"ranges"`
}

// TableDefinition is the user-supplied description of a table.
type TableDefinition struct {
	Name          string             `json:"name"`
	Columns       []ColumnDefinition `json:"columns"`
	ReplicaNum    int32              `json:"replica_num"`
	Partition     PartitionRule      `json:"partition"`
	AutoIncrement uint64             `json:"auto_increment,omitempty"`
	Properties    map[string]string  `json:"properties,omitempty"`
}

// WithAutoIncrement reports whether any column declares auto-increment
// or a start value was supplied.
func (d *TableDefinition) WithAutoIncrement() bool {
	if d.AutoIncrement > 0 {
		return true
	}
	for i := range d.Columns {
		if d.Columns[i].AutoIncrement {
			return true
		}
	}
	return false
}

// Partition binds one partition of a table or index to its region. The
// range itself lives on the region.
type Partition struct {
	RegionID uint64 `json:"region_id"`
}
