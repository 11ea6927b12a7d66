package mvcc

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

// Write is a representation of a committed write to backing storage.
// A serialized version is stored in the write CF of the engine when a
// write is committed, keyed by user key plus commit timestamp. That
// allows readers to find the status of a key at a given timestamp.
type Write struct {
	StartTS uint64
	Kind    WriteKind
	// ShortValue carries the value inline when it is small enough,
	// saving the data CF lookup.
	ShortValue []byte
}

// ToBytes serializes the write: kind | start ts | short value.
func (wr *Write) ToBytes() []byte {
	buf := make([]byte, 0, 9+len(wr.ShortValue))
	buf = append(buf, byte(wr.Kind))
	buf = appendUint64(buf, wr.StartTS)
	return append(buf, wr.ShortValue...)
}

func ParseWrite(value []byte) (*Write, error) {
	if value == nil {
		return nil, nil
	}
	if len(value) < 9 {
		return nil, errors.Errorf("mvcc: write value is incorrect length, expected at least 9, found %d", len(value))
	}
	kind := WriteKind(value[0])
	startTs := binary.BigEndian.Uint64(value[1:])
	var shortValue []byte
	if len(value) > 9 {
		shortValue = value[9:]
	}

	return &Write{StartTS: startTs, Kind: kind, ShortValue: shortValue}, nil
}

type WriteKind int

const (
	WriteKindPut      WriteKind = 1
	WriteKindDelete   WriteKind = 2
	WriteKindRollback WriteKind = 3
	WriteKindLock     WriteKind = 4
)

func (wk WriteKind) String() string {
	switch wk {
	case WriteKindPut:
		return "PUT"
	case WriteKindDelete:
		return "DELETE"
	case WriteKindRollback:
		return "ROLLBACK"
	case WriteKindLock:
		return "LOCK"
	}
	return "UNKNOWN"
}
