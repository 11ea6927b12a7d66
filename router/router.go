// Package router keeps a client-side cache of region metadata so data
// requests can be addressed without a coordinator round trip. The cache
// is an ordered map from region start key to the region descriptor;
// misses and routing failures reported by callers refresh it.
package router

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

const defaultBTreeDegree = 64

// RegionFetcher resolves the region covering a key from the
// authoritative metadata. The coordinator control satisfies it.
type RegionFetcher interface {
	GetRegionByKey(key []byte) (*meta.Region, error)
}

type regionItem struct {
	region *meta.Region
}

// Less orders items by region start key.
func (r *regionItem) Less(other btree.Item) bool {
	left := r.region.Range.StartKey
	right := other.(*regionItem).region.Range.StartKey
	return bytes.Compare(left, right) < 0
}

func (r *regionItem) contains(key []byte) bool {
	return r.region.Range.Contains(key)
}

// RegionRouter caches regions by start key and fetches misses from the
// coordinator.
type RegionRouter struct {
	mu      sync.RWMutex
	tree    *btree.BTree
	fetcher RegionFetcher
}

func NewRegionRouter(fetcher RegionFetcher) *RegionRouter {
	return &RegionRouter{
		tree:    btree.New(defaultBTreeDegree),
		fetcher: fetcher,
	}
}

// LookupRegionByKey returns the region covering key, consulting the
// cache first and the fetcher on a miss. The fetched region replaces
// any cached entries it overlaps.
func (r *RegionRouter) LookupRegionByKey(key []byte) (*meta.Region, error) {
	r.mu.RLock()
	item := r.find(key)
	r.mu.RUnlock()
	if item != nil {
		return copyRegion(item.region), nil
	}

	region, err := r.fetcher.GetRegionByKey(key)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.insert(region)
	r.mu.Unlock()
	return copyRegion(region), nil
}

// find returns the cached item covering key, or nil. Caller holds at
// least the read lock.
func (r *RegionRouter) find(key []byte) *regionItem {
	probe := &regionItem{region: &meta.Region{Range: meta.Range{StartKey: key}}}
	var found *regionItem
	r.tree.DescendLessOrEqual(probe, func(i btree.Item) bool {
		found = i.(*regionItem)
		return false
	})
	if found == nil || !found.contains(key) {
		return nil
	}
	return found
}

// insert adds one region, evicting every cached entry whose range
// overlaps it. Caller holds the write lock.
func (r *RegionRouter) insert(region *meta.Region) {
	for _, stale := range r.overlaps(region) {
		r.tree.Delete(stale)
	}
	r.tree.ReplaceOrInsert(&regionItem{region: copyRegion(region)})
}

// overlaps collects the cached items intersecting region's range.
// Caller holds the write lock.
func (r *RegionRouter) overlaps(region *meta.Region) []*regionItem {
	var result []*regionItem
	// The item left of the start key may still reach into the range.
	if item := r.find(region.Range.StartKey); item != nil {
		result = append(result, item)
	}
	probe := &regionItem{region: copyRegion(region)}
	r.tree.AscendGreaterOrEqual(probe, func(i btree.Item) bool {
		item := i.(*regionItem)
		if len(region.Range.EndKey) > 0 &&
			bytes.Compare(region.Range.EndKey, item.region.Range.StartKey) <= 0 {
			return false
		}
		if len(result) == 0 || result[len(result)-1] != item {
			result = append(result, item)
		}
		return true
	})
	return result
}

// ReportFailure invalidates the cached region when the caller observed
// a routing error from a store. Other statuses leave the cache alone.
func (r *RegionRouter) ReportFailure(regionID uint64, err error) {
	switch status.CodeOf(err) {
	case status.NotLeader, status.EpochStale, status.RegionSplit:
	default:
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale *regionItem
	r.tree.Ascend(func(i btree.Item) bool {
		item := i.(*regionItem)
		if item.region.ID == regionID {
			stale = item
			return false
		}
		return true
	})
	if stale != nil {
		r.tree.Delete(stale)
		log.Info("cached region invalidated",
			zap.Uint64("regionID", regionID),
			zap.Int32("status", int32(status.CodeOf(err))))
	}
}

// InvalidateRange erases every cached region intersecting rng, for
// split or merge notifications received out-of-band.
func (r *RegionRouter) InvalidateRange(rng meta.Range) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stale := range r.overlaps(&meta.Region{Range: rng}) {
		r.tree.Delete(stale)
	}
}

// Dump lists the cached regions in start-key order. Diagnostic only.
func (r *RegionRouter) Dump() []*meta.Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regions := make([]*meta.Region, 0, r.tree.Len())
	r.tree.Ascend(func(i btree.Item) bool {
		regions = append(regions, copyRegion(i.(*regionItem).region))
		return true
	})
	return regions
}

func copyRegion(region *meta.Region) *meta.Region {
	out := *region
	out.Peers = append([]meta.Peer(nil), region.Peers...)
	return &out
}
