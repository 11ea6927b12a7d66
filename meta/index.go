package meta

// IndexType selects the index family.
type IndexType int32

const (
	IndexTypeNone IndexType = iota
	IndexTypeVector
	IndexTypeScalar
)

// VectorIndexType selects the vector indexing algorithm. Only parameter
// validation is in scope; the algorithms themselves live on the stores.
type VectorIndexType int32

const (
	VectorIndexTypeNone VectorIndexType = iota
	VectorIndexTypeFlat
	VectorIndexTypeHNSW
	VectorIndexTypeIVFFlat
	VectorIndexTypeIVFPQ
	VectorIndexTypeDiskANN
)

func (t VectorIndexType) String() string {
	switch t {
	case VectorIndexTypeFlat:
		return "FLAT"
	case VectorIndexTypeHNSW:
		return "HNSW"
	case VectorIndexTypeIVFFlat:
		return "IVF_FLAT"
	case VectorIndexTypeIVFPQ:
		return "IVF_PQ"
	case VectorIndexTypeDiskANN:
		return "DISKANN"
	default:
		return "NONE"
	}
}

// MetricType is the distance metric of a vector index.
type MetricType int32

const (
	MetricTypeNone MetricType = iota
	MetricTypeL2
	MetricTypeInnerProduct
	MetricTypeCosine
)

// ScalarIndexType selects the scalar index structure.
type ScalarIndexType int32

const (
	ScalarIndexTypeNone ScalarIndexType = iota
	ScalarIndexTypeLSMTree
	ScalarIndexTypeBTree
)

// FlatParam configures a brute-force index.
type FlatParam struct {
	Dimension  int32      `json:"dimension"`
	MetricType MetricType `json:"metric_type"`
}

// HNSWParam configures a hierarchical small-world graph index.
type HNSWParam struct {
	Dimension      int32      `json:"dimension"`
	MetricType     MetricType `json:"metric_type"`
	EfConstruction int32      `json:"efconstruction"`
	MaxElements    int32      `json:"max_elements"`
	NLinks         int32      `json:"nlinks"`
}

// IVFFlatParam configures an inverted-file index with flat residuals.
type IVFFlatParam struct {
	Dimension  int32      `json:"dimension"`
	MetricType MetricType `json:"metric_type"`
	NCentroids int32      `json:"ncentroids"`
}

// IVFPQParam configures an inverted-file index with product
// quantization.
type IVFPQParam struct {
	Dimension      int32      `json:"dimension"`
	MetricType     MetricType `json:"metric_type"`
	NCentroids     int32      `json:"ncentroids"`
	NSubVector     int32      `json:"nsubvector"`
	BucketInitSize int32      `json:"bucket_init_size"`
	BucketMaxSize  int32      `json:"bucket_max_size"`
}

// DiskANNParam configures a disk-resident graph index.
type DiskANNParam struct {
	Dimension    int32      `json:"dimension"`
	MetricType   MetricType `json:"metric_type"`
	NumTrees     int32      `json:"num_trees"`
	NumNeighbors int32      `json:"num_neighbors"`
	NumThreads   int32      `json:"num_threads"`
}

// VectorIndexParameter holds the algorithm selector plus the parameter
// block matching it. Exactly one block is meaningful.
type VectorIndexParameter struct {
	VectorIndexType VectorIndexType `json:"vector_index_type"`
	Flat            *FlatParam      `json:"flat,omitempty"`
	HNSW            *HNSWParam      `json:"hnsw,omitempty"`
	IVFFlat         *IVFFlatParam   `json:"ivf_flat,omitempty"`
	IVFPQ           *IVFPQParam     `json:"ivf_pq,omitempty"`
	DiskANN         *DiskANNParam   `json:"diskann,omitempty"`
}

// ScalarIndexParameter configures a scalar index.
type ScalarIndexParameter struct {
	ScalarIndexType ScalarIndexType `json:"scalar_index_type"`
}

// IndexParameter is the variant over index families.
type IndexParameter struct {
	IndexType   IndexType             `json:"index_type"`
	VectorParam *VectorIndexParameter `json:"vector_param,omitempty"`
	ScalarParam *ScalarIndexParameter `json:"scalar_param,omitempty"`
}

// IndexDefinition is the user-supplied description of an index.
type IndexDefinition struct {
	Name          string         `json:"name"`
	ReplicaNum    int32          `json:"replica_num"`
	Partition     PartitionRule  `json:"partition"`
	Parameter     IndexParameter `json:"parameter"`
	AutoIncrement uint64         `json:"auto_increment,omitempty"`
	Version       uint32         `json:"version,omitempty"`
}

// WithAutoIncrement reports whether the index carries a sequence start.
func (d *IndexDefinition) WithAutoIncrement() bool {
	return d.AutoIncrement > 0
}
