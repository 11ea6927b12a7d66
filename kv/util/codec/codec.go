// Package codec implements the memcomparable key encoding used by the
// multi-version storage layout: user keys are padded into fixed groups
// so encoded keys sort like their raw form, and timestamps are appended
// bitwise-inverted so versions of one key sort newest first.
package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

const (
	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)
)

var pads = make([]byte, encGroupSize)

// EncodeKey combines a user key and a timestamp into one storage key.
// Encoded keys sort first by user key (ascending), then by timestamp
// (descending), which is the seek contract the version walk relies on.
func EncodeKey(key []byte, ts uint64) []byte {
	buf := EncodeBytes(key)
	buf = append(buf, make([]byte, 8)...)
	binary.BigEndian.PutUint64(buf[len(buf)-8:], ^ts)
	return buf
}

// EncodeBytes encodes data so the result compares like the input:
//  [group1][marker1]...[groupN][markerN]
// Each group is 8 bytes, zero-padded; its marker is 0xFF minus the pad
// count. A full group carries marker 0xFF and forces an empty final
// group, so every encoding ends on a short group. Format per
// https://github.com/facebook/mysql-5.6/wiki/MyRocks-record-format#memcomparable-format
// For example:
//   [] -> [0, 0, 0, 0, 0, 0, 0, 0, 247]
//   [1, 2, 3] -> [1, 2, 3, 0, 0, 0, 0, 0, 250]
//   [1, 2, 3, 0] -> [1, 2, 3, 0, 0, 0, 0, 0, 251]
//   [1, 2, 3, 4, 5, 6, 7, 8] -> [1, 2, 3, 4, 5, 6, 7, 8, 255, 0, 0, 0, 0, 0, 0, 0, 0, 247]
func EncodeBytes(data []byte) []byte {
	dLen := len(data)
	// Room for every 9-byte group plus the 8-byte timestamp EncodeKey
	// appends, so the common caller never reallocates.
	result := make([]byte, 0, (dLen/encGroupSize+1)*(encGroupSize+1)+8)
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			result = append(result, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			result = append(result, data[idx:]...)
			result = append(result, pads[:padCount]...)
		}
		result = append(result, encMarker-byte(padCount))
	}
	return result
}

// DecodeUserKey strips the timestamp off an encoded key and returns the
// user key part.
func DecodeUserKey(key []byte) []byte {
	_, userKey, err := DecodeBytes(key)
	if err != nil {
		panic(err)
	}
	return userKey
}

// DecodeTs returns the timestamp part of an encoded key.
func DecodeTs(key []byte) uint64 {
	left, _, err := DecodeBytes(key)
	if err != nil {
		panic(err)
	}
	return ^binary.BigEndian.Uint64(left)
}

// DecodeBytes reverses EncodeBytes, returning the leftover bytes after
// the encoded run and the decoded value.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < encGroupSize+1 {
			return nil, nil, errors.New("insufficient bytes to decode value")
		}

		group := b[:encGroupSize]
		marker := b[encGroupSize]

		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, errors.Errorf("invalid marker byte, group bytes %q", b[:encGroupSize+1])
		}

		realGroupSize := encGroupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[encGroupSize+1:]

		if padCount != 0 {
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, errors.Errorf("invalid padding byte, group bytes %q", group)
				}
			}
			break
		}
	}
	return b, data, nil
}
