package mvcc

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

// TsMax is the largest timestamp; seeking at TsMax finds the newest
// version of a key.
const TsMax uint64 = ^uint64(0)

// Values at most this long may be carried inline in lock and write
// records instead of the data column family.
const ShortValueMaxLen = 64

// Lock is the representation of an uncommitted write. A serialized
// version is stored in the lock CF keyed by the plain user key, so at
// most one lock exists per key.
type Lock struct {
	Primary     []byte
	Ts          uint64
	Ttl         uint64
	ForUpdateTs uint64
	Kind        WriteKind
	ShortValue  []byte
}

// KlPair is a key with the lock held on it.
type KlPair struct {
	Key  []byte
	Lock *Lock
}

// Info creates a LockInfo for key, the caller-facing view of the lock.
func (lock *Lock) Info(key []byte) *LockInfo {
	return &LockInfo{
		Key:         append([]byte(nil), key...),
		PrimaryLock: lock.Primary,
		LockTs:      lock.Ts,
		LockTtl:     lock.Ttl,
		ForUpdateTs: lock.ForUpdateTs,
		LockType:    lock.Kind,
		ShortValue:  lock.ShortValue,
	}
}

// IsLockedFor checks whether the lock blocks a read at txnStartTs.
func (lock *Lock) IsLockedFor(txnStartTs uint64) bool {
	if lock == nil {
		return false
	}
	return lock.Ts <= txnStartTs
}

// ToBytes serializes the lock:
// kind | ts | ttl | for_update_ts | primary len | primary | short value
func (lock *Lock) ToBytes() []byte {
	buf := make([]byte, 0, 27+len(lock.Primary)+len(lock.ShortValue))
	buf = append(buf, byte(lock.Kind))
	buf = appendUint64(buf, lock.Ts)
	buf = appendUint64(buf, lock.Ttl)
	buf = appendUint64(buf, lock.ForUpdateTs)
	buf = appendUint16(buf, uint16(len(lock.Primary)))
	buf = append(buf, lock.Primary...)
	buf = append(buf, lock.ShortValue...)
	return buf
}

// ParseLock attempts to parse a byte string into a Lock object.
func ParseLock(input []byte) (*Lock, error) {
	if len(input) < 27 {
		return nil, errors.Errorf("mvcc: error parsing lock, not enough input, found %d bytes", len(input))
	}
	kind := WriteKind(input[0])
	ts := binary.BigEndian.Uint64(input[1:])
	ttl := binary.BigEndian.Uint64(input[9:])
	forUpdateTs := binary.BigEndian.Uint64(input[17:])
	primaryLen := int(binary.BigEndian.Uint16(input[25:]))
	if len(input) < 27+primaryLen {
		return nil, errors.Errorf("mvcc: error parsing lock, primary key truncated, found %d bytes", len(input))
	}
	primary := input[27 : 27+primaryLen]
	var shortValue []byte
	if len(input) > 27+primaryLen {
		shortValue = input[27+primaryLen:]
	}

	return &Lock{
		Primary:     primary,
		Ts:          ts,
		Ttl:         ttl,
		ForUpdateTs: forUpdateTs,
		Kind:        kind,
		ShortValue:  shortValue,
	}, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}
