// Package wal implements the append-only write-ahead log.
//
// # Record format
//
//	+---------+-------------+-----+---------------+-------+----------+
//	| type 1B | keyLen u32  | key | valueLen u32  | value | crc u32  |
//	+---------+-------------+-----+---------------+-------+----------+
//
// All integers are little-endian. The CRC-32 covers everything before it.
// There is no file header; readers parse records until EOF or corruption.
package wal

import (
	"encoding/binary"

	"emberdb/internal/base"
)

// RecordType tags a WAL record.
type RecordType uint8

const (
	TypePut        RecordType = 1
	TypeDelete     RecordType = 2
	TypeUpdate     RecordType = 3
	TypeCheckpoint RecordType = 4
)

// String returns a human-readable record type name.
func (t RecordType) String() string {
	switch t {
	case TypePut:
		return "PUT"
	case TypeDelete:
		return "DELETE"
	case TypeUpdate:
		return "UPDATE"
	case TypeCheckpoint:
		return "CHECKPOINT"
	default:
		return "UNKNOWN"
	}
}

func (t RecordType) valid() bool {
	return t >= TypePut && t <= TypeCheckpoint
}

// Record is a single WAL entry. Delete records carry an empty value;
// checkpoint markers carry an empty key and value.
type Record struct {
	Type  RecordType
	Key   []byte
	Value []byte
}

func encodedSize(key, value []byte) int {
	return 1 + 4 + len(key) + 4 + len(value) + 4
}

// appendRecord serializes one record onto dst and returns the extended
// slice. The trailing CRC is computed over the serialized bytes that
// precede it.
func appendRecord(dst []byte, rt RecordType, key, value []byte) []byte {
	start := len(dst)
	dst = append(dst, byte(rt))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(key)))
	dst = append(dst, key...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(value)))
	dst = append(dst, value...)
	return binary.LittleEndian.AppendUint32(dst, base.Checksum(dst[start:]))
}
