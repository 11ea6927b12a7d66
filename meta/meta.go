// Package meta holds the cluster metadata entities shared by the
// coordinator, the router and the stores: regions, peers, table and
// index definitions, and their metrics.
package meta

import "bytes"

// RawKeyPrefix tags raw user keys stored in the engine key space.
const RawKeyPrefix = 'w'

// EncodeRawKey prefixes a user key with the raw-KV namespace tag.
func EncodeRawKey(key []byte) []byte {
	out := make([]byte, 0, len(key)+1)
	out = append(out, RawKeyPrefix)
	return append(out, key...)
}

// PrefixNext returns the smallest key strictly greater than prefix
// itself (prefix followed by one zero byte), used to form an exclusive
// upper bound from an inclusive key. Longer keys that start with prefix
// also sort above the result.
func PrefixNext(prefix []byte) []byte {
	out := make([]byte, 0, len(prefix)+1)
	out = append(out, prefix...)
	return append(out, 0)
}

// Range is a half-open key interval [StartKey, EndKey).
type Range struct {
	StartKey []byte `json:"start_key"`
	EndKey   []byte `json:"end_key"`
}

// Contains reports whether key falls inside the range. An empty EndKey
// means unbounded above.
func (r Range) Contains(key []byte) bool {
	if bytes.Compare(key, r.StartKey) < 0 {
		return false
	}
	return len(r.EndKey) == 0 || bytes.Compare(key, r.EndKey) < 0
}

// PeerRole distinguishes voting replicas from learners.
type PeerRole int32

const (
	RoleVoter PeerRole = iota
	RoleLearner
)

// Location is the network address of a store or server.
type Location struct {
	Host string `json:"host"`
	Port int32  `json:"port"`
}

// Peer is one replica of a region placed on a store.
type Peer struct {
	StoreID        uint64   `json:"store_id"`
	Role           PeerRole `json:"role"`
	ServerLocation Location `json:"server_location"`
}

// RegionType tells whether a region holds table rows or index entries.
type RegionType int32

const (
	RegionTypeStore RegionType = iota
	RegionTypeIndex
)

// RegionEpoch versions a region's membership and range. ConfVersion
// bumps on peer changes, Version on splits and merges.
type RegionEpoch struct {
	ConfVersion uint64 `json:"conf_version"`
	Version     uint64 `json:"version"`
}

// Region is a contiguous key-range replica group, the unit of placement
// and routing.
type Region struct {
	ID            uint64      `json:"id"`
	Name          string      `json:"name"`
	Type          RegionType  `json:"type"`
	Epoch         RegionEpoch `json:"epoch"`
	Range         Range       `json:"range"`
	Peers         []Peer      `json:"peers"`
	LeaderStoreID uint64      `json:"leader_store_id"`
	SchemaID      uint64      `json:"schema_id"`
	TableID       uint64      `json:"table_id"`
	IndexID       uint64      `json:"index_id"`
}

// LeaderPeer returns the leader replica, or nil when the leader store
// holds no peer of this region.
func (r *Region) LeaderPeer() *Peer {
	for i := range r.Peers {
		if r.Peers[i].StoreID == r.LeaderStoreID {
			return &r.Peers[i]
		}
	}
	return nil
}

// StoreState tracks whether a store may receive new region peers.
type StoreState int32

const (
	StoreStateNormal StoreState = iota
	StoreStateOffline
)

// Store is one data-plane node registered with the coordinator.
type Store struct {
	ID             uint64     `json:"id"`
	State          StoreState `json:"state"`
	ServerLocation Location   `json:"server_location"`
}

// Schema groups tables and indexes under a unique name. Children are
// held as ids only.
type Schema struct {
	ID       uint64   `json:"id"`
	Name     string   `json:"name"`
	ParentID uint64   `json:"parent_id"`
	TableIDs []uint64 `json:"table_ids"`
	IndexIDs []uint64 `json:"index_ids"`
}

// RangeDistribution describes one partition of a table or index: its
// region, range and replica placement.
type RangeDistribution struct {
	RegionID         uint64      `json:"region_id"`
	Range            Range       `json:"range"`
	LeaderLocation   Location    `json:"leader_location"`
	VoterLocations   []Location  `json:"voter_locations"`
	LearnerLocations []Location  `json:"learner_locations"`
	RegionEpoch      RegionEpoch `json:"region_epoch"`
}

// VersionInfo is the build identity reported by Hello.
type VersionInfo struct {
	GitCommitHash string `json:"git_commit_hash"`
	GitTagName    string `json:"git_tag_name"`
	BuildTime     string `json:"build_time"`
	Version       string `json:"version"`
}
