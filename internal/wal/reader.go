package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"emberdb/internal/base"
)

const readBufferSize = 8192

// Reader parses records from the log in append order.
//
// Next returns io.EOF at a clean end of log. Truncation mid-record, an
// unknown type, an over-limit length, or a checksum mismatch all surface as
// base.ErrCorruption; the reader is not usable afterwards.
type Reader struct {
	file    *os.File
	br      *bufio.Reader
	path    string
	scratch []byte
	records uint64
}

// OpenReader opens the log read-only. A missing or unreadable file yields a
// reader that reports io.EOF immediately; IsOpen distinguishes a fresh
// start from an open log.
func OpenReader(path string) *Reader {
	r := &Reader{path: path}
	file, err := os.Open(path)
	if err != nil {
		return r
	}
	r.file = file
	r.br = bufio.NewReaderSize(file, readBufferSize)
	return r
}

// IsOpen reports whether a log file is actually attached.
func (r *Reader) IsOpen() bool {
	return r.file != nil
}

// Next parses and returns the next record. The returned Key and Value are
// valid until the following call to Next.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if r.file == nil {
		return rec, io.EOF
	}

	typ, err := r.br.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("read wal %s: %w", r.path, err)
	}

	rec.Type = RecordType(typ)
	if !rec.Type.valid() {
		return rec, fmt.Errorf("%w: invalid wal record type %d", base.ErrCorruption, typ)
	}
	r.scratch = append(r.scratch[:0], typ)

	keyLen, err := r.readUint32()
	if err != nil {
		return rec, r.corrupt("key length", err)
	}
	if keyLen > base.MaxKeySize {
		return rec, fmt.Errorf("%w: wal key length %d exceeds maximum", base.ErrCorruption, keyLen)
	}
	rec.Key, err = r.readFull(int(keyLen))
	if err != nil {
		return rec, r.corrupt("key", err)
	}

	valueLen, err := r.readUint32()
	if err != nil {
		return rec, r.corrupt("value length", err)
	}
	if valueLen > base.MaxValueSize {
		return rec, fmt.Errorf("%w: wal value length %d exceeds maximum", base.ErrCorruption, valueLen)
	}
	rec.Value, err = r.readFull(int(valueLen))
	if err != nil {
		return rec, r.corrupt("value", err)
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r.br, crcBuf[:]); err != nil {
		return rec, r.corrupt("crc", err)
	}
	stored := binary.LittleEndian.Uint32(crcBuf[:])
	computed := base.Checksum(r.scratch)
	if stored != computed {
		return rec, fmt.Errorf("%w: wal record crc mismatch (stored %#x, computed %#x)",
			base.ErrCorruption, stored, computed)
	}

	r.records++
	return rec, nil
}

// Records returns the number of records parsed so far.
func (r *Reader) Records() uint64 {
	return r.records
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// readFull reads exactly n bytes, folding them into the checksum region.
func (r *Reader) readFull(n int) ([]byte, error) {
	start := len(r.scratch)
	r.scratch = append(r.scratch, make([]byte, n)...)
	if _, err := io.ReadFull(r.br, r.scratch[start:]); err != nil {
		return nil, err
	}
	return r.scratch[start:], nil
}

func (r *Reader) readUint32() (uint32, error) {
	b, err := r.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// corrupt classifies a mid-record read failure. Running out of bytes after
// consuming any part of a record is corruption, not a clean end of log.
func (r *Reader) corrupt(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: wal truncated reading record %s", base.ErrCorruption, what)
	}
	return fmt.Errorf("read wal %s: %w", r.path, err)
}
