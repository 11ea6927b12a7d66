package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

func TestValidateTableDefinition(t *testing.T) {
	good := tableDef("t", "a", "z")
	assert.NoError(t, validateTableDefinition(good))

	cases := []struct {
		name string
		def  *meta.TableDefinition
	}{
		{"nil", nil},
		{"empty name", tableDef("")},
		{"no ranges", tableDef("t")},
		{"hash strategy", &meta.TableDefinition{
			Name: "t",
			Partition: meta.PartitionRule{
				Strategy: meta.PartitionStrategyHash,
				Ranges:   []meta.Range{{StartKey: []byte("a"), EndKey: []byte("z")}},
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateTableDefinition(tc.def)
			assert.Equal(t, status.TableDefinitionIllegal, status.CodeOf(err))
		})
	}
}

func TestValidateIndexDefinitionShape(t *testing.T) {
	assert.NoError(t, validateIndexDefinition(hnswIndexDef("v", "a", "z")))

	noName := hnswIndexDef("", "a", "z")
	assert.Equal(t, status.IndexDefinitionIllegal,
		status.CodeOf(validateIndexDefinition(noName)))

	noRanges := hnswIndexDef("v")
	assert.Equal(t, status.IndexDefinitionIllegal,
		status.CodeOf(validateIndexDefinition(noRanges)))

	hash := hnswIndexDef("v", "a", "z")
	hash.Partition.Strategy = meta.PartitionStrategyHash
	assert.Equal(t, status.IndexDefinitionIllegal,
		status.CodeOf(validateIndexDefinition(hash)))

	none := hnswIndexDef("v", "a", "z")
	none.Parameter.IndexType = meta.IndexTypeNone
	assert.Equal(t, status.IndexDefinitionIllegal,
		status.CodeOf(validateIndexDefinition(none)))

	missingBlock := hnswIndexDef("v", "a", "z")
	missingBlock.Parameter.VectorParam = nil
	assert.Equal(t, status.IndexDefinitionIllegal,
		status.CodeOf(validateIndexDefinition(missingBlock)))
}

func TestValidateScalarIndexParameter(t *testing.T) {
	good := &meta.IndexParameter{
		IndexType:   meta.IndexTypeScalar,
		ScalarParam: &meta.ScalarIndexParameter{ScalarIndexType: meta.ScalarIndexTypeBTree},
	}
	assert.NoError(t, validateIndexParameter("s", good))

	noKind := &meta.IndexParameter{
		IndexType:   meta.IndexTypeScalar,
		ScalarParam: &meta.ScalarIndexParameter{},
	}
	assert.Equal(t, status.IndexDefinitionIllegal,
		status.CodeOf(validateIndexParameter("s", noKind)))

	noBlock := &meta.IndexParameter{IndexType: meta.IndexTypeScalar}
	assert.Equal(t, status.IndexDefinitionIllegal,
		status.CodeOf(validateIndexParameter("s", noBlock)))
}

// Every required parameter of every vector index type must be rejected
// when zero.
func TestValidateVectorIndexParameterTotality(t *testing.T) {
	flat := func() *meta.VectorIndexParameter {
		return &meta.VectorIndexParameter{
			VectorIndexType: meta.VectorIndexTypeFlat,
			Flat:            &meta.FlatParam{Dimension: 8, MetricType: meta.MetricTypeL2},
		}
	}
	hnsw := func() *meta.VectorIndexParameter {
		return &meta.VectorIndexParameter{
			VectorIndexType: meta.VectorIndexTypeHNSW,
			HNSW: &meta.HNSWParam{
				Dimension: 8, MetricType: meta.MetricTypeCosine,
				EfConstruction: 100, MaxElements: 1000, NLinks: 16,
			},
		}
	}
	ivfFlat := func() *meta.VectorIndexParameter {
		return &meta.VectorIndexParameter{
			VectorIndexType: meta.VectorIndexTypeIVFFlat,
			IVFFlat: &meta.IVFFlatParam{
				Dimension: 8, MetricType: meta.MetricTypeL2, NCentroids: 64,
			},
		}
	}
	ivfPQ := func() *meta.VectorIndexParameter {
		return &meta.VectorIndexParameter{
			VectorIndexType: meta.VectorIndexTypeIVFPQ,
			IVFPQ: &meta.IVFPQParam{
				Dimension: 8, MetricType: meta.MetricTypeInnerProduct,
				NCentroids: 64, NSubVector: 4, BucketInitSize: 100, BucketMaxSize: 1000,
			},
		}
	}
	diskANN := func() *meta.VectorIndexParameter {
		return &meta.VectorIndexParameter{
			VectorIndexType: meta.VectorIndexTypeDiskANN,
			DiskANN: &meta.DiskANNParam{
				Dimension: 8, MetricType: meta.MetricTypeL2,
				NumTrees: 4, NumNeighbors: 32, NumThreads: 8,
			},
		}
	}

	cases := []struct {
		name   string
		build  func() *meta.VectorIndexParameter
		mutate func(*meta.VectorIndexParameter)
	}{
		{"flat dimension", flat, func(p *meta.VectorIndexParameter) { p.Flat.Dimension = 0 }},
		{"flat metric", flat, func(p *meta.VectorIndexParameter) { p.Flat.MetricType = meta.MetricTypeNone }},
		{"flat block", flat, func(p *meta.VectorIndexParameter) { p.Flat = nil }},
		{"hnsw dimension", hnsw, func(p *meta.VectorIndexParameter) { p.HNSW.Dimension = 0 }},
		{"hnsw metric", hnsw, func(p *meta.VectorIndexParameter) { p.HNSW.MetricType = meta.MetricTypeNone }},
		{"hnsw efconstruction", hnsw, func(p *meta.VectorIndexParameter) { p.HNSW.EfConstruction = 0 }},
		{"hnsw max_elements", hnsw, func(p *meta.VectorIndexParameter) { p.HNSW.MaxElements = 0 }},
		{"hnsw nlinks", hnsw, func(p *meta.VectorIndexParameter) { p.HNSW.NLinks = 0 }},
		{"hnsw block", hnsw, func(p *meta.VectorIndexParameter) { p.HNSW = nil }},
		{"ivf_flat dimension", ivfFlat, func(p *meta.VectorIndexParameter) { p.IVFFlat.Dimension = 0 }},
		{"ivf_flat metric", ivfFlat, func(p *meta.VectorIndexParameter) { p.IVFFlat.MetricType = meta.MetricTypeNone }},
		{"ivf_flat ncentroids", ivfFlat, func(p *meta.VectorIndexParameter) { p.IVFFlat.NCentroids = 0 }},
		{"ivf_pq dimension", ivfPQ, func(p *meta.VectorIndexParameter) { p.IVFPQ.Dimension = 0 }},
		{"ivf_pq metric", ivfPQ, func(p *meta.VectorIndexParameter) { p.IVFPQ.MetricType = meta.MetricTypeNone }},
		{"ivf_pq ncentroids", ivfPQ, func(p *meta.VectorIndexParameter) { p.IVFPQ.NCentroids = 0 }},
		{"ivf_pq nsubvector", ivfPQ, func(p *meta.VectorIndexParameter) { p.IVFPQ.NSubVector = 0 }},
		{"ivf_pq bucket_init_size", ivfPQ, func(p *meta.VectorIndexParameter) { p.IVFPQ.BucketInitSize = 0 }},
		{"ivf_pq bucket_max_size", ivfPQ, func(p *meta.VectorIndexParameter) { p.IVFPQ.BucketMaxSize = 0 }},
		{"diskann dimension", diskANN, func(p *meta.VectorIndexParameter) { p.DiskANN.Dimension = 0 }},
		{"diskann metric", diskANN, func(p *meta.VectorIndexParameter) { p.DiskANN.MetricType = meta.MetricTypeNone }},
		{"diskann num_trees", diskANN, func(p *meta.VectorIndexParameter) { p.DiskANN.NumTrees = 0 }},
		{"diskann num_neighbors", diskANN, func(p *meta.VectorIndexParameter) { p.DiskANN.NumNeighbors = 0 }},
		{"diskann num_threads", diskANN, func(p *meta.VectorIndexParameter) { p.DiskANN.NumThreads = 0 }},
		{"type none", flat, func(p *meta.VectorIndexParameter) { p.VectorIndexType = meta.VectorIndexTypeNone }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			param := tc.build()
			assert.NoError(t, validateVectorIndexParameter("v", param))
			tc.mutate(param)
			err := validateVectorIndexParameter("v", param)
			assert.Equal(t, status.IndexDefinitionIllegal, status.CodeOf(err))
		})
	}
}
