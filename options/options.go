// Package options configures the embeddable search engine: data directory,
// per-worker memory budget, indexing thread count, and the bounded work
// channel capacity that provides natural backpressure.
package options

import "time"

// writerOptions controls the multi-threaded segment writer.
type writerOptions struct {
	// MemoryBudget is the per-worker-thread threshold (in bytes) at which
	// an in-progress in-memory segment is flushed to disk. Accepted range
	// is 15 MiB - 1 GiB.
	MemoryBudget uint64 `json:"memoryBudget"`

	// NumThreads is the number of parallel indexing worker threads, each
	// owning a private in-memory segment.
	NumThreads int `json:"numThreads"`

	// ChannelCapacity bounds the work channel workers drain from; once
	// full, AddDocument blocks.
	ChannelCapacity int `json:"channelCapacity"`
}

// Options holds the full engine configuration.
type Options struct {
	// DataDir is the directory the index's segment files live under.
	DataDir string `json:"dataDir"`

	// GCInterval is how often the background sweep reclaims segment files
	// no longer referenced by the live meta (open Reader snapshots are not
	// consulted).
	GCInterval time.Duration `json:"gcInterval"`

	WriterOptions *writerOptions `json:"writerOptions"`
}

const (
	// MinMemoryBudget is the lower bound for WithMemoryBudget.
	MinMemoryBudget = 15 << 20 // 15 MiB
	// MaxMemoryBudget is the upper bound for WithMemoryBudget.
	MaxMemoryBudget = 1 << 30 // 1 GiB

	// DefaultMemoryBudget is used when no WithMemoryBudget option is given.
	DefaultMemoryBudget = 128 << 20 // 128 MiB
	// DefaultNumThreads is used when no WithNumThreads option is given.
	DefaultNumThreads = 4
	// DefaultChannelCapacity is used when no WithChannelCapacity option is given.
	DefaultChannelCapacity = 256
	// DefaultGCInterval is used when no WithGCInterval option is given.
	DefaultGCInterval = 5 * time.Minute
	// DefaultDataDir is used when no WithDataDir option is given.
	DefaultDataDir = "./ember-index"
)

// NewDefaultOptions returns an Options populated with the package defaults.
func NewDefaultOptions() Options {
	return Options{
		DataDir:    DefaultDataDir,
		GCInterval: DefaultGCInterval,
		WriterOptions: &writerOptions{
			MemoryBudget:    DefaultMemoryBudget,
			NumThreads:      DefaultNumThreads,
			ChannelCapacity: DefaultChannelCapacity,
		},
	}
}

// OptionFunc mutates an Options during construction.
type OptionFunc func(*Options)

// New builds an Options from the package defaults, applying each fn in
// order.
func New(fns ...OptionFunc) *Options {
	o := NewDefaultOptions()
	for _, fn := range fns {
		fn(&o)
	}
	return &o
}

// WithDataDir overrides the data directory.
func WithDataDir(dir string) OptionFunc {
	return func(o *Options) {
		if dir != "" {
			o.DataDir = dir
		}
	}
}

// WithGCInterval overrides how often the background sweep runs.
func WithGCInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.GCInterval = interval
		}
	}
}

// WithMemoryBudget overrides the per-worker flush threshold. Values outside
// [MinMemoryBudget, MaxMemoryBudget] are ignored.
func WithMemoryBudget(bytes uint64) OptionFunc {
	return func(o *Options) {
		if bytes >= MinMemoryBudget && bytes <= MaxMemoryBudget {
			o.WriterOptions.MemoryBudget = bytes
		}
	}
}

// WithNumThreads overrides the number of indexing worker threads.
func WithNumThreads(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.WriterOptions.NumThreads = n
		}
	}
}

// WithChannelCapacity overrides the bounded work-channel capacity.
func WithChannelCapacity(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.WriterOptions.ChannelCapacity = n
		}
	}
}

// MemoryBudget returns the configured per-worker flush threshold.
func (o *Options) MemoryBudget() uint64 { return o.WriterOptions.MemoryBudget }

// NumThreads returns the configured indexing worker thread count.
func (o *Options) NumThreads() int { return o.WriterOptions.NumThreads }

// ChannelCapacity returns the configured bounded work-channel capacity.
func (o *Options) ChannelCapacity() int { return o.WriterOptions.ChannelCapacity }
