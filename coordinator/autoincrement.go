package coordinator

import (
	"context"
	"sync"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/kv/util/worker"
	"github.com/dingodb/dingokv/status"
)

// AutoIncrementControl manages the per-entity id sequences backing
// auto-increment columns. Create is called synchronously while a table
// or index is being created; Delete is fired asynchronously on drop.
type AutoIncrementControl interface {
	CreateAutoIncrement(ctx context.Context, entityID uint64, startID uint64) error
	DeleteAutoIncrement(ctx context.Context, entityID uint64) error
}

// MemAutoIncrement is an in-process AutoIncrementControl. Sequences
// hand out half-open id ranges so callers can batch allocations.
type MemAutoIncrement struct {
	mu   sync.Mutex
	next map[uint64]uint64
}

func NewMemAutoIncrement() *MemAutoIncrement {
	return &MemAutoIncrement{next: make(map[uint64]uint64)}
}

func (a *MemAutoIncrement) CreateAutoIncrement(ctx context.Context, entityID uint64, startID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.next[entityID]; ok {
		return status.New(status.IllegalParameters,
			"sequence for entity %d already exists", entityID).Err()
	}
	if startID == 0 {
		startID = 1
	}
	a.next[entityID] = startID
	return nil
}

func (a *MemAutoIncrement) DeleteAutoIncrement(ctx context.Context, entityID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.next, entityID)
	return nil
}

// Generate reserves count ids and returns the half-open range
// [start, end) it reserved.
func (a *MemAutoIncrement) Generate(ctx context.Context, entityID uint64, count uint32) (uint64, uint64, error) {
	if count == 0 {
		return 0, 0, status.New(status.IllegalParameters, "count must be positive").Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	start, ok := a.next[entityID]
	if !ok {
		return 0, 0, status.New(status.IllegalParameters,
			"no sequence for entity %d", entityID).Err()
	}
	end := start + uint64(count)
	a.next[entityID] = end
	return start, end, nil
}

// Get returns the next id the sequence would hand out.
func (a *MemAutoIncrement) Get(ctx context.Context, entityID uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, ok := a.next[entityID]
	if !ok {
		return 0, status.New(status.IllegalParameters,
			"no sequence for entity %d", entityID).Err()
	}
	return next, nil
}

// Update forces the sequence forward to startID. Moving a sequence
// backwards is refused so previously handed out ids stay unique.
func (a *MemAutoIncrement) Update(ctx context.Context, entityID uint64, startID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, ok := a.next[entityID]
	if !ok {
		return status.New(status.IllegalParameters,
			"no sequence for entity %d", entityID).Err()
	}
	if startID < next {
		return status.New(status.IllegalParameters,
			"sequence for entity %d is already at %d, cannot move back to %d",
			entityID, next, startID).Err()
	}
	a.next[entityID] = startID
	return nil
}

// autoIncDeleteTask asks the background worker to tear down the
// sequence of a dropped table or index.
type autoIncDeleteTask struct {
	entityID uint64
}

type autoIncDeleteHandler struct {
	autoInc AutoIncrementControl
}

func (h *autoIncDeleteHandler) Handle(t worker.Task) {
	task, ok := t.(autoIncDeleteTask)
	if !ok {
		return
	}
	if err := h.autoInc.DeleteAutoIncrement(context.Background(), task.entityID); err != nil {
		log.Warn("auto increment delete failed",
			zap.Uint64("entityID", task.entityID), zap.Error(err))
	}
}
