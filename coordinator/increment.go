package coordinator

import (
	"github.com/dingodb/dingokv/meta"
)

// IncrementOp is the mutation kind of one entity entry inside a
// MetaIncrement.
type IncrementOp int32

const (
	OpCreate IncrementOp = iota
	OpUpdate
	OpDelete
)

func (op IncrementOp) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	}
	return "UNKNOWN"
}

// TableInternal is the coordinator's authoritative record of a table.
// Partitions reference region ids only; the ranges live on the regions.
type TableInternal struct {
	ID         uint64               `json:"id"`
	SchemaID   uint64               `json:"schema_id"`
	Definition meta.TableDefinition `json:"definition"`
	Partitions []meta.Partition     `json:"partitions"`
}

// IndexInternal is the coordinator's authoritative record of an index.
type IndexInternal struct {
	ID         uint64               `json:"id"`
	SchemaID   uint64               `json:"schema_id"`
	Definition meta.IndexDefinition `json:"definition"`
	Partitions []meta.Partition     `json:"partitions"`
}

// IdEpochIncrement records one counter bump; Value is the counter value
// after the bump.
type IdEpochIncrement struct {
	Kind  IdEpochKind `json:"kind"`
	Value uint64      `json:"value"`
}

type SchemaIncrement struct {
	Op     IncrementOp `json:"op"`
	Schema meta.Schema `json:"schema"`
}

type TableIncrement struct {
	Op    IncrementOp   `json:"op"`
	Table TableInternal `json:"table"`
}

type IndexIncrement struct {
	Op    IncrementOp   `json:"op"`
	Index IndexInternal `json:"index"`
}

type RegionIncrement struct {
	Op     IncrementOp `json:"op"`
	Region meta.Region `json:"region"`
}

type StoreIncrement struct {
	Op    IncrementOp `json:"op"`
	Store meta.Store  `json:"store"`
}

// MetaIncrement describes one atomic metadata mutation. Operations
// build an increment, append it to the replicated log, and the apply
// loop folds it into the in-memory maps. Nothing is visible until the
// whole increment applies.
type MetaIncrement struct {
	IdEpochs []IdEpochIncrement `json:"id_epochs,omitempty"`
	Schemas  []SchemaIncrement  `json:"schemas,omitempty"`
	Tables   []TableIncrement   `json:"tables,omitempty"`
	Indexes  []IndexIncrement   `json:"indexes,omitempty"`
	Regions  []RegionIncrement  `json:"regions,omitempty"`
	Stores   []StoreIncrement   `json:"stores,omitempty"`
}

// Empty reports whether the increment carries no mutation at all.
func (inc *MetaIncrement) Empty() bool {
	return len(inc.IdEpochs) == 0 && len(inc.Schemas) == 0 && len(inc.Tables) == 0 &&
		len(inc.Indexes) == 0 && len(inc.Regions) == 0 && len(inc.Stores) == 0
}
