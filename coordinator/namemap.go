package coordinator

import (
	"fmt"
	"sync"
)

// NameMap is the pre-apply reservation map for entity names. Creates
// reserve a name with PutIfAbsent before their increment reaches the
// log; any downstream failure must Erase the reservation. The
// authoritative name maps are rebuilt from the committed log; this map
// only arbitrates concurrent creators synchronously.
type NameMap struct {
	mu sync.Mutex
	m  map[string]uint64
}

func NewNameMap() *NameMap {
	return &NameMap{m: make(map[string]uint64)}
}

// PutIfAbsent reserves name for id. It returns false when the name is
// already taken.
func (n *NameMap) PutIfAbsent(name string, id uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.m[name]; ok {
		return false
	}
	n.m[name] = id
	return true
}

// Erase releases a reservation.
func (n *NameMap) Erase(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.m, name)
}

// Get returns the id reserved under name.
func (n *NameMap) Get(name string) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id, ok := n.m[name]
	return id, ok
}

// scopedName keys table and index names by their parent schema so the
// same name may exist under different schemas.
func scopedName(schemaID uint64, name string) string {
	return fmt.Sprintf("%d_%s", schemaID, name)
}
