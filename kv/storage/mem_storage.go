package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Connor1996/badger/y"
	"github.com/petar/GoLLRB/llrb"

	"github.com/dingodb/dingokv/kv/util/engine_util"
)

// MemStorage is a simple storage engine backed by memory for testing.
// Data is not written to disk, nor sent to other nodes. It is intended
// for testing only.
type MemStorage struct {
	CfDefault *llrb.LLRB
	CfLock    *llrb.LLRB
	CfWrite   *llrb.LLRB
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		CfDefault: llrb.New(),
		CfLock:    llrb.New(),
		CfWrite:   llrb.New(),
	}
}

func (s *MemStorage) Start() error {
	return nil
}

func (s *MemStorage) Stop() error {
	return nil
}

func (s *MemStorage) Reader(ctx context.Context) (StorageReader, error) {
	return &memReader{s}, nil
}

func (s *MemStorage) Write(ctx context.Context, batch []Modify) error {
	for _, m := range batch {
		switch data := m.Data.(type) {
		case Put:
			item := memItem{data.Key, data.Value, false}
			switch data.Cf {
			case engine_util.CfDefault:
				s.CfDefault.ReplaceOrInsert(item)
			case engine_util.CfLock:
				s.CfLock.ReplaceOrInsert(item)
			case engine_util.CfWrite:
				s.CfWrite.ReplaceOrInsert(item)
			}
		case Delete:
			item := memItem{key: data.Key}
			switch data.Cf {
			case engine_util.CfDefault:
				s.CfDefault.Delete(item)
			case engine_util.CfLock:
				s.CfLock.Delete(item)
			case engine_util.CfWrite:
				s.CfWrite.Delete(item)
			}
		}
	}
	return nil
}

func (s *MemStorage) tree(cf string) *llrb.LLRB {
	switch cf {
	case engine_util.CfDefault:
		return s.CfDefault
	case engine_util.CfLock:
		return s.CfLock
	case engine_util.CfWrite:
		return s.CfWrite
	}
	return nil
}

func (s *MemStorage) Get(cf string, key []byte) []byte {
	data := s.tree(cf)
	if data == nil {
		return nil
	}
	result := data.Get(memItem{key: key})
	if result == nil {
		return nil
	}
	return result.(memItem).value
}

func (s *MemStorage) Set(cf string, key []byte, value []byte) {
	if data := s.tree(cf); data != nil {
		data.ReplaceOrInsert(memItem{key, value, true})
	}
}

func (s *MemStorage) HasChanged(cf string, key []byte) bool {
	data := s.tree(cf)
	if data == nil {
		return true
	}
	result := data.Get(memItem{key: key})
	if result == nil {
		return true
	}
	return !result.(memItem).fresh
}

func (s *MemStorage) Len(cf string) int {
	if data := s.tree(cf); data != nil {
		return data.Len()
	}
	return -1
}

// memReader is a StorageReader which reads from a MemStorage.
type memReader struct {
	inner *MemStorage
}

func (mr *memReader) GetCF(cf string, key []byte) ([]byte, error) {
	data := mr.inner.tree(cf)
	if data == nil {
		return nil, fmt.Errorf("mem-storage: bad CF %s", cf)
	}
	result := data.Get(memItem{key: key})
	if result == nil {
		return nil, nil
	}
	return result.(memItem).value, nil
}

func (mr *memReader) IterCF(cf string) engine_util.DBIterator {
	data := mr.inner.tree(cf)
	if data == nil {
		return nil
	}
	it := &memIter{data: data}
	if min := data.Min(); min != nil {
		it.item = min.(memItem)
	}
	return it
}

func (mr *memReader) IterReverseCF(cf string) engine_util.DBIterator {
	data := mr.inner.tree(cf)
	if data == nil {
		return nil
	}
	it := &memIter{data: data, reverse: true}
	if max := data.Max(); max != nil {
		it.item = max.(memItem)
	}
	return it
}

func (mr *memReader) Close() {}

type memIter struct {
	data    *llrb.LLRB
	item    memItem
	reverse bool
}

func (it *memIter) Item() engine_util.DBItem {
	return it.item
}

func (it *memIter) Valid() bool {
	return it.item.key != nil
}

func (it *memIter) Next() {
	first := true
	oldItem := it.item
	it.item = memItem{}
	walk := func(item llrb.Item) bool {
		// Skip the first item, which is the current one.
		if first {
			first = false
			return true
		}
		it.item = item.(memItem)
		return false
	}
	if it.reverse {
		it.data.DescendLessOrEqual(oldItem, walk)
	} else {
		it.data.AscendGreaterOrEqual(oldItem, walk)
	}
}

func (it *memIter) Seek(key []byte) {
	it.item = memItem{}
	walk := func(item llrb.Item) bool {
		it.item = item.(memItem)
		return false
	}
	if it.reverse {
		it.data.DescendLessOrEqual(memItem{key: key}, walk)
	} else {
		it.data.AscendGreaterOrEqual(memItem{key: key}, walk)
	}
}

func (it *memIter) Close() {}

type memItem struct {
	key   []byte
	value []byte
	fresh bool
}

func (it memItem) Key() []byte {
	return it.key
}
func (it memItem) KeyCopy(dst []byte) []byte {
	return y.SafeCopy(dst, it.key)
}
func (it memItem) Value() ([]byte, error) {
	return it.value, nil
}
func (it memItem) ValueSize() int {
	return len(it.value)
}
func (it memItem) ValueCopy(dst []byte) ([]byte, error) {
	return y.SafeCopy(dst, it.value), nil
}

func (it memItem) Less(than llrb.Item) bool {
	other := than.(memItem)
	return bytes.Compare(it.key, other.key) < 0
}
