package emberdb

// Options configures store behavior.
type Options struct {
	logger             Logger
	checkpointInterval int
	syncOnWrite        bool
}

// DefaultOptions returns the configuration used when no options are passed
// to Open.
func DefaultOptions() Options {
	return Options{
		logger:             DiscardLogger{},
		checkpointInterval: 10000,
	}
}

// Option configures the store using the functional options pattern.
type Option func(*Options)

// WithLogger routes the store's diagnostics to l.
func WithLogger(l Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// WithCheckpointInterval sets the number of successful mutations between
// automatic checkpoints. 0 disables automatic checkpointing.
func WithCheckpointInterval(n int) Option {
	return func(o *Options) {
		o.checkpointInterval = n
	}
}

// WithSyncOnWrite fsyncs the WAL after every mutation. This guarantees
// per-operation durability at the cost of fsync latency; without it,
// durability requires an explicit Sync or a checkpoint.
func WithSyncOnWrite() Option {
	return func(o *Options) {
		o.syncOnWrite = true
	}
}
