// Package snapshot materializes and restores the full key-value state.
//
// # File format
//
//	header := magic u32 | version u32 | entryCount u32 | headerCRC u32
//	entry  := keyLen u32 | key | valueLen u32 | value | entryCRC u32
//	file   := header, entry x entryCount
//
// All integers are little-endian. headerCRC covers the first 12 bytes;
// each entryCRC covers the entry bytes that precede it.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"emberdb/internal/base"
)

const (
	// Magic identifies a snapshot file ("EMBR").
	Magic = 0x454D4252

	// Version is the only format version this code reads or writes.
	Version = 1
)

// Iterator walks entries in ascending key order, invoking fn for each until
// fn returns false.
type Iterator func(fn func(key, value []byte) bool)

// Snapshotter dumps and restores the complete map at a fixed path. Writes
// go to a temp file that is fsynced and renamed over the target, so a
// partial dump is never observed as the canonical snapshot.
type Snapshotter struct {
	path string
}

// New returns a Snapshotter for the given target path.
func New(path string) *Snapshotter {
	return &Snapshotter{path: path}
}

// Path returns the canonical snapshot path.
func (s *Snapshotter) Path() string {
	return s.path
}

// Exists reports whether a snapshot file is present.
func (s *Snapshotter) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Create writes a new snapshot containing every entry produced by iterate,
// returning the entry count. iterate runs twice: once to count entries for
// the header, once to stream them out; the underlying state must not change
// in between. On any failure the temp file is removed and the previous
// snapshot, if any, stays in place.
func (s *Snapshotter) Create(iterate Iterator) (entries int, err error) {
	tmp := s.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("create snapshot temp %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tmp)
		}
	}()

	count := 0
	iterate(func(_, _ []byte) bool {
		count++
		return true
	})

	bw := bufio.NewWriter(file)

	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], Version)
	binary.LittleEndian.PutUint32(header[8:12], uint32(count))
	bw.Write(header[:])
	writeUint32(bw, base.Checksum(header[:]))

	scratch := make([]byte, 0, 8+base.MaxKeySize+base.MaxValueSize)
	iterate(func(key, value []byte) bool {
		scratch = scratch[:0]
		scratch = binary.LittleEndian.AppendUint32(scratch, uint32(len(key)))
		scratch = append(scratch, key...)
		scratch = binary.LittleEndian.AppendUint32(scratch, uint32(len(value)))
		scratch = append(scratch, value...)
		bw.Write(scratch)
		writeUint32(bw, base.Checksum(scratch))
		return true
	})

	if err = bw.Flush(); err != nil {
		return 0, fmt.Errorf("write snapshot %s: %w", tmp, err)
	}
	if err = file.Sync(); err != nil {
		return 0, fmt.Errorf("sync snapshot %s: %w", tmp, err)
	}
	if err = file.Close(); err != nil {
		return 0, fmt.Errorf("close snapshot %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename snapshot %s: %w", s.path, err)
	}
	return count, nil
}

// Load reads the snapshot and feeds each entry to apply in file order,
// returning the number of entries applied. A missing snapshot is not an
// error. The slices passed to apply are only valid during the call.
func (s *Snapshotter) Load(apply func(key, value []byte) error) (entries int, err error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open snapshot %s: %w", s.path, err)
	}
	defer file.Close()

	br := bufio.NewReader(file)

	var header [12]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return 0, fmt.Errorf("%w: snapshot header truncated", base.ErrCorruption)
	}
	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != Magic {
		return 0, fmt.Errorf("%w: invalid snapshot magic %#x", base.ErrCorruption, magic)
	}
	if version := binary.LittleEndian.Uint32(header[4:8]); version != Version {
		return 0, fmt.Errorf("%w: unsupported snapshot version %d", base.ErrCorruption, version)
	}
	count := binary.LittleEndian.Uint32(header[8:12])

	stored, err := readUint32(br)
	if err != nil {
		return 0, fmt.Errorf("%w: snapshot header crc truncated", base.ErrCorruption)
	}
	if computed := base.Checksum(header[:]); stored != computed {
		return 0, fmt.Errorf("%w: snapshot header crc mismatch (stored %#x, computed %#x)",
			base.ErrCorruption, stored, computed)
	}

	scratch := make([]byte, 0, 8+base.MaxKeySize+base.MaxValueSize)
	for i := uint32(0); i < count; i++ {
		scratch = scratch[:0]

		keyLen, err := readUint32(br)
		if err != nil {
			return int(i), fmt.Errorf("%w: snapshot truncated at entry %d", base.ErrCorruption, i)
		}
		if keyLen > base.MaxKeySize {
			return int(i), fmt.Errorf("%w: snapshot key length %d exceeds maximum at entry %d",
				base.ErrCorruption, keyLen, i)
		}
		scratch = binary.LittleEndian.AppendUint32(scratch, keyLen)
		key := scratch[len(scratch) : len(scratch)+int(keyLen)]
		scratch = scratch[:len(scratch)+int(keyLen)]
		if _, err := io.ReadFull(br, key); err != nil {
			return int(i), fmt.Errorf("%w: snapshot truncated at entry %d", base.ErrCorruption, i)
		}

		valueLen, err := readUint32(br)
		if err != nil {
			return int(i), fmt.Errorf("%w: snapshot truncated at entry %d", base.ErrCorruption, i)
		}
		if valueLen > base.MaxValueSize {
			return int(i), fmt.Errorf("%w: snapshot value length %d exceeds maximum at entry %d",
				base.ErrCorruption, valueLen, i)
		}
		scratch = binary.LittleEndian.AppendUint32(scratch, valueLen)
		value := scratch[len(scratch) : len(scratch)+int(valueLen)]
		scratch = scratch[:len(scratch)+int(valueLen)]
		if _, err := io.ReadFull(br, value); err != nil {
			return int(i), fmt.Errorf("%w: snapshot truncated at entry %d", base.ErrCorruption, i)
		}

		stored, err := readUint32(br)
		if err != nil {
			return int(i), fmt.Errorf("%w: snapshot truncated at entry %d", base.ErrCorruption, i)
		}
		if computed := base.Checksum(scratch); stored != computed {
			return int(i), fmt.Errorf("%w: entry crc mismatch at entry %d", base.ErrCorruption, i)
		}

		if err := apply(key, value); err != nil {
			return int(i), err
		}
	}
	return int(count), nil
}

func writeUint32(bw *bufio.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	bw.Write(b[:])
}

func readUint32(br *bufio.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
