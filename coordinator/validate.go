package coordinator

import (
	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

// validateTableDefinition rejects definitions the region builder cannot
// place. Only range partitioning is supported.
func validateTableDefinition(def *meta.TableDefinition) error {
	if def == nil || def.Name == "" {
		return status.New(status.TableDefinitionIllegal, "table name must not be empty").Err()
	}
	if def.Partition.Strategy != meta.PartitionStrategyRange {
		return status.New(status.TableDefinitionIllegal,
			"table %q: only range partitioning is supported", def.Name).Err()
	}
	if len(def.Partition.Ranges) == 0 {
		return status.New(status.TableDefinitionIllegal,
			"table %q: at least one partition range required", def.Name).Err()
	}
	return nil
}

// validateIndexDefinition checks the definition shape plus the
// per-algorithm parameter block.
func validateIndexDefinition(def *meta.IndexDefinition) error {
	if def == nil || def.Name == "" {
		return status.New(status.IndexDefinitionIllegal, "index name must not be empty").Err()
	}
	if def.Partition.Strategy != meta.PartitionStrategyRange {
		return status.New(status.IndexDefinitionIllegal,
			"index %q: only range partitioning is supported", def.Name).Err()
	}
	if len(def.Partition.Ranges) == 0 {
		return status.New(status.IndexDefinitionIllegal,
			"index %q: at least one partition range required", def.Name).Err()
	}
	return validateIndexParameter(def.Name, &def.Parameter)
}

func validateIndexParameter(name string, param *meta.IndexParameter) error {
	switch param.IndexType {
	case meta.IndexTypeVector:
		if param.VectorParam == nil {
			return status.New(status.IndexDefinitionIllegal,
				"index %q: vector parameter block missing", name).Err()
		}
		return validateVectorIndexParameter(name, param.VectorParam)
	case meta.IndexTypeScalar:
		if param.ScalarParam == nil || param.ScalarParam.ScalarIndexType == meta.ScalarIndexTypeNone {
			return status.New(status.IndexDefinitionIllegal,
				"index %q: scalar index type must be set", name).Err()
		}
		return nil
	default:
		return status.New(status.IndexDefinitionIllegal,
			"index %q: index type must be vector or scalar", name).Err()
	}
}

func validateVectorIndexParameter(name string, param *meta.VectorIndexParameter) error {
	illegal := func(format string, args ...interface{}) error {
		return status.New(status.IndexDefinitionIllegal,
			"index %q: "+format, append([]interface{}{name}, args...)...).Err()
	}
	checkBase := func(algo string, dimension int32, metric meta.MetricType) error {
		if dimension <= 0 {
			return illegal("%s dimension must be positive, got %d", algo, dimension)
		}
		if metric == meta.MetricTypeNone {
			return illegal("%s metric type must be set", algo)
		}
		return nil
	}

	switch param.VectorIndexType {
	case meta.VectorIndexTypeFlat:
		p := param.Flat
		if p == nil {
			return illegal("flat parameter block missing")
		}
		return checkBase("flat", p.Dimension, p.MetricType)
	case meta.VectorIndexTypeHNSW:
		p := param.HNSW
		if p == nil {
			return illegal("hnsw parameter block missing")
		}
		if err := checkBase("hnsw", p.Dimension, p.MetricType); err != nil {
			return err
		}
		if p.EfConstruction <= 0 {
			return illegal("hnsw efconstruction must be positive, got %d", p.EfConstruction)
		}
		if p.MaxElements <= 0 {
			return illegal("hnsw max_elements must be positive, got %d", p.MaxElements)
		}
		if p.NLinks <= 0 {
			return illegal("hnsw nlinks must be positive, got %d", p.NLinks)
		}
		return nil
	case meta.VectorIndexTypeIVFFlat:
		p := param.IVFFlat
		if p == nil {
			return illegal("ivf_flat parameter block missing")
		}
		if err := checkBase("ivf_flat", p.Dimension, p.MetricType); err != nil {
			return err
		}
		if p.NCentroids <= 0 {
			return illegal("ivf_flat ncentroids must be positive, got %d", p.NCentroids)
		}
		return nil
	case meta.VectorIndexTypeIVFPQ:
		p := param.IVFPQ
		if p == nil {
			return illegal("ivf_pq parameter block missing")
		}
		if err := checkBase("ivf_pq", p.Dimension, p.MetricType); err != nil {
			return err
		}
		if p.NCentroids <= 0 {
			return illegal("ivf_pq ncentroids must be positive, got %d", p.NCentroids)
		}
		if p.NSubVector <= 0 {
			return illegal("ivf_pq nsubvector must be positive, got %d", p.NSubVector)
		}
		if p.BucketInitSize <= 0 {
			return illegal("ivf_pq bucket_init_size must be positive, got %d", p.BucketInitSize)
		}
		if p.BucketMaxSize <= 0 {
			return illegal("ivf_pq bucket_max_size must be positive, got %d", p.BucketMaxSize)
		}
		return nil
	case meta.VectorIndexTypeDiskANN:
		p := param.DiskANN
		if p == nil {
			return illegal("diskann parameter block missing")
		}
		if err := checkBase("diskann", p.Dimension, p.MetricType); err != nil {
			return err
		}
		if p.NumTrees <= 0 {
			return illegal("diskann num_trees must be positive, got %d", p.NumTrees)
		}
		if p.NumNeighbors <= 0 {
			return illegal("diskann num_neighbors must be positive, got %d", p.NumNeighbors)
		}
		if p.NumThreads <= 0 {
			return illegal("diskann num_threads must be positive, got %d", p.NumThreads)
		}
		return nil
	default:
		return illegal("vector index type must be set")
	}
}
