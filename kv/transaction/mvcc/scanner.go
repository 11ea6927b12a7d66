package mvcc

import (
	"bytes"
	"context"

	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/util/engine_util"
	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

// Coprocessor filters and projects scanned values before they are
// returned to the client.
type Coprocessor interface {
	// Apply returns the projected value and whether the pair should be
	// kept in the result set.
	Apply(key, value []byte) ([]byte, bool, error)
}

// ScanOptions tunes a Scan call.
type ScanOptions struct {
	Limit       uint32
	KeyOnly     bool
	Reverse     bool
	Coprocessor Coprocessor
}

// Scanner reads sequential user keys from the snapshot by co-iterating
// the lock and write column families in lockstep. Locked keys are
// reported in the TxnResultInfo and skipped; so are keys whose visible
// version is a delete. The scanner is consumed in one call and is not
// restartable.
type Scanner struct {
	txn       *RoTxn
	writeIter engine_util.DBIterator
	lockIter  engine_util.DBIterator
	startKey  []byte
	endKey    []byte
	reverse   bool
	readTs    uint64
	txnResult *TxnResultInfo

	lastLockKey  []byte
	lastWriteKey []byte
}

// NewScanner creates a new scanner ready to read from the snapshot in
// txn across rng in the requested direction.
func NewScanner(txn *RoTxn, rng meta.Range, reverse bool, readTs uint64, txnResult *TxnResultInfo) *Scanner {
	scan := &Scanner{
		txn:       txn,
		startKey:  rng.StartKey,
		endKey:    rng.EndKey,
		reverse:   reverse,
		readTs:    readTs,
		txnResult: txnResult,
	}
	if reverse {
		scan.writeIter = txn.Reader.IterReverseCF(engine_util.CfWrite)
		scan.lockIter = txn.Reader.IterReverseCF(engine_util.CfLock)
		// The end key is exclusive. Encoding it with TsMax yields a key
		// below every real version of it, so the seek lands on the
		// previous user key.
		scan.writeIter.Seek(EncodeKey(rng.EndKey, TsMax))
		scan.lockIter.Seek(rng.EndKey)
		if scan.lockIter.Valid() && bytes.Equal(scan.lockIter.Item().Key(), rng.EndKey) {
			scan.lockIter.Next()
		}
	} else {
		scan.writeIter = txn.Reader.IterCF(engine_util.CfWrite)
		scan.lockIter = txn.Reader.IterCF(engine_util.CfLock)
		scan.writeIter.Seek(EncodeKey(rng.StartKey, TsMax))
		scan.lockIter.Seek(rng.StartKey)
	}
	return scan
}

func (scan *Scanner) Close() {
	scan.writeIter.Close()
	scan.lockIter.Close()
}

// inRange reports whether a candidate user key still falls inside the
// scan bounds for the current direction.
func (scan *Scanner) inRange(key []byte) bool {
	if scan.reverse {
		return bytes.Compare(key, scan.startKey) >= 0
	}
	return !engine_util.ExceedEndKey(key, scan.endKey)
}

// candidate returns the next user key the scan should consider, taking
// the nearer of the two iterator positions. ok is false when both sides
// are exhausted.
func (scan *Scanner) candidate() (key []byte, ok bool) {
	var wKey, lKey []byte
	if scan.writeIter.Valid() {
		k := DecodeUserKey(scan.writeIter.Item().Key())
		if scan.inRange(k) {
			wKey = k
		}
	}
	if scan.lockIter.Valid() {
		k := scan.lockIter.Item().KeyCopy(nil)
		if scan.inRange(k) {
			lKey = k
		}
	}
	switch {
	case wKey == nil && lKey == nil:
		return nil, false
	case wKey == nil:
		return lKey, true
	case lKey == nil:
		return wKey, true
	}
	cmp := bytes.Compare(wKey, lKey)
	if (cmp <= 0) != scan.reverse || cmp == 0 {
		return wKey, true
	}
	return lKey, true
}

// skipWrites moves the write iterator past every version of key.
func (scan *Scanner) skipWrites(key []byte) {
	if scan.reverse {
		scan.writeIter.Seek(EncodeKey(key, TsMax))
	} else {
		scan.writeIter.Seek(EncodeKey(key, 0))
	}
	for scan.writeIter.Valid() && bytes.Equal(DecodeUserKey(scan.writeIter.Item().Key()), key) {
		scan.writeIter.Next()
	}
	scan.lastWriteKey = key
}

// skipLock moves the lock iterator past key.
func (scan *Scanner) skipLock(key []byte) {
	if scan.lockIter.Valid() && bytes.Equal(scan.lockIter.Item().Key(), key) {
		scan.lockIter.Next()
	}
	scan.lastLockKey = key
}

// Next returns the next visible key/value pair. A nil key means the
// scan is exhausted. Keys that are locked, deleted, rolled back, or
// filtered by the coprocessor are skipped.
func (scan *Scanner) Next(coprocessor Coprocessor) ([]byte, []byte, error) {
	for {
		key, ok := scan.candidate()
		if !ok {
			return nil, nil, nil
		}

		locked := false
		if scan.lockIter.Valid() && bytes.Equal(scan.lockIter.Item().Key(), key) {
			raw, err := scan.lockIter.Item().Value()
			if err != nil {
				return nil, nil, err
			}
			lock, err := ParseLock(raw)
			if err != nil {
				return nil, nil, err
			}
			if lock.IsLockedFor(scan.txn.StartTS) {
				scan.txnResult.Locked = append(scan.txnResult.Locked, lock.Info(key))
				locked = true
			}
			scan.skipLock(key)
		}

		hasWrites := scan.writeIter.Valid() && bytes.Equal(DecodeUserKey(scan.writeIter.Item().Key()), key)
		if hasWrites {
			scan.skipWrites(key)
		}
		if locked || !hasWrites {
			// A lock with no committed write contributes no value.
			continue
		}

		value, err := scan.txn.valueAt(key, scan.readTs)
		if err != nil {
			return nil, nil, err
		}
		if value == nil {
			continue
		}
		if coprocessor != nil {
			projected, keep, err := coprocessor.Apply(key, value)
			if err != nil {
				return nil, nil, err
			}
			if !keep {
				continue
			}
			value = projected
		}
		return key, value, nil
	}
}

// Scan reads up to opts.Limit visible pairs from rng at startTs. It
// returns the pairs, the per-key transaction outcomes, whether the scan
// stopped because of the limit, and the first key not yet consumed,
// usable as the start of a follow-up scan.
func Scan(ctx context.Context, engine storage.Storage, isolation IsolationLevel, startTs uint64,
	rng meta.Range, opts ScanOptions) ([]KeyValue, *TxnResultInfo, bool, []byte, error) {
	if opts.Reverse && len(rng.EndKey) == 0 {
		return nil, nil, false, nil, status.New(status.IllegalParameters,
			"reverse scan requires a bounded range").Err()
	}

	reader, err := engine.Reader(ctx)
	if err != nil {
		return nil, nil, false, nil, err
	}
	defer reader.Close()

	readTs := startTs
	if isolation == ReadCommitted {
		readTs = TsMax
	}

	txnResult := new(TxnResultInfo)
	txn := &RoTxn{Reader: reader, StartTS: startTs}
	scan := NewScanner(txn, rng, opts.Reverse, readTs, txnResult)
	defer scan.Close()

	var kvs []KeyValue
	for opts.Limit == 0 || uint32(len(kvs)) < opts.Limit {
		key, value, err := scan.Next(opts.Coprocessor)
		if err != nil {
			return nil, nil, false, nil, err
		}
		if key == nil {
			break
		}
		kv := KeyValue{Key: key}
		if !opts.KeyOnly {
			kv.Value = value
		}
		kvs = append(kvs, kv)
	}

	// The resumption point is the next unconsumed candidate; when the
	// scan exhausted the range it is the range boundary itself.
	hasMore := false
	endKey := rng.EndKey
	if opts.Reverse {
		endKey = rng.StartKey
	}
	if next, ok := scan.candidate(); ok {
		endKey = next
		hasMore = true
	}
	return kvs, txnResult, hasMore, endKey, nil
}
