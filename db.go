// Package emberdb is an embedded, single-process, crash-consistent ordered
// key-value store. An in-memory B+-tree serves all reads and writes; every
// mutation is appended to a write-ahead log before it touches the tree, and
// periodic checkpoints dump the full state to a snapshot file so the log can
// be truncated. Reopening a store loads the latest snapshot and replays the
// log tail, reproducing exactly the operations whose commit was durable.
package emberdb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"emberdb/internal/btree"
	"emberdb/internal/snapshot"
	"emberdb/internal/wal"
)

// DB is the store handle. All operations run to completion on the caller's
// goroutine; a DB must not be used concurrently, and two DBs must not share
// a WAL path.
type DB struct {
	tree    *btree.BTree
	wal     *wal.Writer // nil when running without durability
	snap    *snapshot.Snapshotter
	walPath string
	logger  Logger

	// recovering marks snapshot load and WAL replay; mutations applied in
	// this mode skip WAL appends and auto-checkpoint accounting.
	recovering bool
	closed     bool

	opCount            uint64
	checkpointInterval int
	syncOnWrite        bool
}

// Open opens or creates a store backed by the WAL at path and the snapshot
// at path+".snapshot", then recovers the persistent state. An empty path
// yields an in-memory store with no durability.
//
// A WAL that cannot be opened for writing is tolerated: the store logs a
// warning and serves from memory only. If replay stops at a corrupt record,
// Open returns the error together with a usable *DB holding the state
// recovered up to that point.
func Open(path string, opts ...Option) (*DB, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db := &DB{
		tree:               btree.New(),
		walPath:            path,
		logger:             o.logger,
		checkpointInterval: o.checkpointInterval,
		syncOnWrite:        o.syncOnWrite,
	}
	if path == "" {
		return db, nil
	}

	db.snap = snapshot.New(path + ".snapshot")
	w, err := wal.OpenWriter(path)
	if err != nil {
		db.logger.Warn("wal open failed, durability disabled", "path", path, "error", err)
	} else {
		db.wal = w
	}

	if err := db.recover(); err != nil {
		return db, err
	}
	return db, nil
}

// recover loads the latest snapshot and replays the WAL tail. Replay stops
// at the first corrupt or unreadable record. A replayed delete for a
// missing key is ignored; a replayed update for a missing key is applied as
// a put.
func (db *DB) recover() (err error) {
	start := time.Now()
	db.recovering = true
	defer func() { db.recovering = false }()

	loaded, err := db.snap.Load(func(key, value []byte) error {
		return db.Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if loaded > 0 {
		db.logger.Info("snapshot loaded", "path", db.snap.Path(), "entries", loaded)
	}

	r := wal.OpenReader(db.walPath)
	if !r.IsOpen() {
		db.logger.Debug("wal absent, fresh start", "path", db.walPath)
		return nil
	}
	defer r.Close()

	records := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("wal replay: %w", err)
		}

		switch rec.Type {
		case wal.TypePut:
			if err := db.Put(rec.Key, rec.Value); err != nil {
				return err
			}
		case wal.TypeDelete:
			if err := db.Delete(rec.Key); err != nil && !errors.Is(err, ErrKeyNotFound) {
				return err
			}
		case wal.TypeUpdate:
			err := db.Update(rec.Key, rec.Value)
			if errors.Is(err, ErrKeyNotFound) {
				db.logger.Warn("replayed update for missing key, applying as put", "key", string(rec.Key))
				err = db.Put(rec.Key, rec.Value)
			}
			if err != nil {
				return err
			}
		case wal.TypeCheckpoint:
			db.logger.Debug("checkpoint marker in wal")
		}
		records++
	}

	db.logger.Info("recovery complete", "records", records, "elapsed", time.Since(start))
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound. The returned
// slice is the caller's to keep.
func (db *DB) Get(key []byte) ([]byte, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	v, ok := db.tree.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Put inserts key or overwrites its value. The WAL record is appended
// before the tree is touched; a WAL failure leaves the store unchanged.
func (db *DB) Put(key, value []byte) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if err := validate(key, value); err != nil {
		return err
	}
	if err := db.appendWAL(wal.TypePut, key, value); err != nil {
		return err
	}
	db.tree.Put(key, value)
	db.noteMutation()
	return nil
}

// Update overwrites the value of an existing key, returning ErrKeyNotFound
// when key is absent. A miss writes no WAL record.
func (db *DB) Update(key, value []byte) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if err := validate(key, value); err != nil {
		return err
	}
	if _, ok := db.tree.Get(key); !ok {
		return ErrKeyNotFound
	}
	if err := db.appendWAL(wal.TypeUpdate, key, value); err != nil {
		return err
	}
	db.tree.Update(key, value)
	db.noteMutation()
	return nil
}

// Delete removes key, returning ErrKeyNotFound when it is absent. A miss
// writes no WAL record.
func (db *DB) Delete(key []byte) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if _, ok := db.tree.Get(key); !ok {
		return ErrKeyNotFound
	}
	if err := db.appendWAL(wal.TypeDelete, key, nil); err != nil {
		return err
	}
	db.tree.Delete(key)
	db.noteMutation()
	return nil
}

// ForEach visits every entry in ascending key order until fn returns false.
// fn must not mutate the store; the slices it receives are only valid
// during the call.
func (db *DB) ForEach(fn func(key, value []byte) bool) {
	db.tree.Ascend(fn)
}

// Len returns the number of entries.
func (db *DB) Len() int {
	return db.tree.Len()
}

// Sync flushes buffered WAL records and forces them to stable storage.
// Mutations are only crash-durable after Sync (or a checkpoint) returns.
func (db *DB) Sync() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if db.wal == nil {
		return nil
	}
	return db.wal.Sync()
}

// Checkpoint atomically writes a full snapshot, then truncates the WAL and
// attaches a fresh writer. If the snapshot fails the WAL is left untouched,
// so the store stays recoverable from the previous snapshot plus the
// existing log.
func (db *DB) Checkpoint() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if db.snap == nil {
		return nil
	}

	start := time.Now()
	entries, err := db.snap.Create(db.tree.Ascend)
	if err != nil {
		return err
	}
	db.logger.Info("snapshot created",
		"path", db.snap.Path(), "entries", entries, "elapsed", time.Since(start))

	if db.wal == nil {
		return nil
	}

	logPath := db.wal.Path()
	if err := db.wal.Close(); err != nil {
		db.wal = nil
		return fmt.Errorf("close wal before truncate: %w", err)
	}
	db.wal = nil

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("truncate wal %s: %w", logPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("truncate wal %s: %w", logPath, err)
	}

	w, err := wal.OpenWriter(logPath)
	if err != nil {
		db.logger.Warn("wal reopen failed, durability disabled", "path", logPath, "error", err)
		return err
	}
	db.wal = w
	return nil
}

// SetCheckpointInterval sets the number of successful mutations between
// automatic checkpoints. 0 disables them.
func (db *DB) SetCheckpointInterval(n int) {
	db.checkpointInterval = n
}

// Stats reports operational counters.
type Stats struct {
	Entries    int
	WALRecords uint64
	WALBytes   uint64
}

// Stats returns a point-in-time view of the store's counters. WAL counters
// reset when a checkpoint attaches a fresh writer.
func (db *DB) Stats() Stats {
	s := Stats{Entries: db.tree.Len()}
	if db.wal != nil {
		ws := db.wal.Stats()
		s.WALRecords = ws.Records
		s.WALBytes = ws.Bytes
	}
	return s
}

// DebugString renders the tree's node structure level by level.
func (db *DB) DebugString() string {
	return db.tree.DebugString()
}

// Close flushes and syncs the WAL and releases the file. Errors are logged
// and returned; the store is unusable afterwards.
func (db *DB) Close() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	db.closed = true
	if db.wal == nil {
		return nil
	}
	err := db.wal.Close()
	db.wal = nil
	if err != nil {
		db.logger.Error("wal close failed", "error", err)
	}
	return err
}

// noteMutation counts a successful mutation and fires an automatic
// checkpoint on the configured interval. A failed automatic checkpoint is
// logged and never fails the user's operation.
func (db *DB) noteMutation() {
	if db.recovering {
		return
	}
	db.opCount++
	if db.checkpointInterval > 0 && db.opCount%uint64(db.checkpointInterval) == 0 {
		if err := db.Checkpoint(); err != nil {
			db.logger.Warn("automatic checkpoint failed", "error", err)
		}
	}
}

// appendWAL records a mutation ahead of its in-memory effect. Appends are
// skipped during recovery and when durability is disabled.
func (db *DB) appendWAL(rt wal.RecordType, key, value []byte) error {
	if db.wal == nil || db.recovering {
		return nil
	}
	if err := db.wal.Append(rt, key, value); err != nil {
		return err
	}
	if db.syncOnWrite {
		return db.wal.Sync()
	}
	return nil
}

func validate(key, value []byte) error {
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}
	return nil
}
