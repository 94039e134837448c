package wal

import (
	"fmt"
	"os"

	"emberdb/internal/base"
	"emberdb/internal/fsutil"
)

// writeBufferSize is the capacity of the writer's internal buffer. A record
// that would overflow it forces a flush first, so a buffered record is never
// split across flushes.
const writeBufferSize = 4096

// Writer appends records to the log through a small internal buffer.
// Buffered records reach the OS on Flush and stable storage on Sync.
//
// Writer is not safe for concurrent use.
type Writer struct {
	file *os.File
	path string
	buf  []byte

	records uint64
	bytes   uint64
}

// Stats reports cumulative writer counters.
type Stats struct {
	Records uint64 // records appended
	Bytes   uint64 // serialized bytes appended, including CRCs
}

// OpenWriter opens or creates the log at path in append mode with
// owner-only permissions.
func OpenWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	return &Writer{
		file: file,
		path: path,
		buf:  make([]byte, 0, writeBufferSize),
	}, nil
}

// Append serializes one record into the buffer, flushing to the file first
// if the record would not fit. The record is not durable until Sync.
func (w *Writer) Append(rt RecordType, key, value []byte) error {
	if len(key) > base.MaxKeySize {
		return base.ErrKeyTooLarge
	}
	if len(value) > base.MaxValueSize {
		return base.ErrValueTooLarge
	}

	size := encodedSize(key, value)
	if len(w.buf)+size > writeBufferSize {
		if err := w.Flush(); err != nil {
			return err
		}
	}

	w.buf = appendRecord(w.buf, rt, key, value)
	w.records++
	w.bytes += uint64(size)
	return nil
}

// Flush hands the buffered bytes to the OS. On error the unwritten tail
// stays in the buffer so the caller may retry.
func (w *Writer) Flush() error {
	for len(w.buf) > 0 {
		n, err := w.file.Write(w.buf)
		if n > 0 {
			w.buf = append(w.buf[:0], w.buf[n:]...)
		}
		if err != nil {
			return fmt.Errorf("write wal %s: %w", w.path, err)
		}
		if n == 0 {
			return fmt.Errorf("write wal %s: short write", w.path)
		}
	}
	return nil
}

// Sync flushes the buffer and forces the written bytes to stable storage.
func (w *Writer) Sync() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if err := fsutil.Fdatasync(w.file); err != nil {
		return fmt.Errorf("sync wal %s: %w", w.path, err)
	}
	return nil
}

// Close flushes, syncs, and closes the file. The first error wins; the file
// is closed regardless.
func (w *Writer) Close() error {
	err := w.Sync()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Stats returns cumulative append counters.
func (w *Writer) Stats() Stats {
	return Stats{Records: w.records, Bytes: w.bytes}
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}
