// Package trainer implements the Trainer: a streaming,
// chunk-shuffled, mini-batch Adam → online SGD engine with within-epoch
// and across-epoch early stopping. This is the hard subsystem the rest of
// the pipeline exists to feed.
package trainer

import "runtime"

// Config is a plain configuration record, replacing the builder-style
// option setters a Java/Scala-flavored source would use: every
// recognized option is a documented field with a sensible default,
// constructed once and handed to New.
type Config struct {
	NumBuckets int // feature width; must match the Extractor's

	// Adam hyperparameters.
	AdamLr float64
	Beta1  float64
	Beta2  float64
	Eps    float64

	// SGD learning-rate schedule endpoints.
	SgdLrStart float64
	SgdLrEnd   float64

	L2Lambda float64 // decoupled weight decay, shared by Adam and SGD

	AdamEpochs int // first N epochs use mini-batch Adam
	MaxEpochs  int // total epoch budget; epochs beyond AdamEpochs use SGD

	MiniBatchSize int // samples accumulated before one Adam update
	BatchSize     int // I/O batch: unit of worker dispatch within a chunk
	ChunkSize     int // unit of epoch-level (shuffled) streaming

	CheckpointInterval   int     // lines between within-epoch dev-subsample checks
	RollingWindow        int     // size of the rolling F1 window for within-epoch stop
	WithinEpochThreshold float64 // max-min F1 over the window below which we stop early
	Patience             int     // epochs without dev-F1 improvement before stopping
	AcrossEpochThreshold float64 // minimum F1 improvement to reset patience

	DevSubsampleSize int // size of the subsample used for within-epoch checkpoints

	SgdThreads  int // Hogwild worker count; default = GOMAXPROCS
	AdamThreads int // per-thread-moment Adam worker count; default 1 (single-threaded)

	Seed int64

	Verbose      bool
	Preprocessed bool // true when the training file's text is already canonicalized (the pool is)
}

// DefaultConfig returns authoritative defaults.
func DefaultConfig(numBuckets int) Config {
	return Config{
		NumBuckets: numBuckets,

		AdamLr: 1e-3,
		Beta1:  0.9,
		Beta2:  0.999,
		Eps:    1e-8,

		SgdLrStart: 1e-2,
		SgdLrEnd:   1e-3,

		L2Lambda: 1e-5,

		AdamEpochs: 2,
		MaxEpochs:  6,

		MiniBatchSize: 128,
		BatchSize:     100_000,
		ChunkSize:     500_000,

		CheckpointInterval:   300_000,
		RollingWindow:        5,
		WithinEpochThreshold: 5e-3,
		Patience:             2,
		AcrossEpochThreshold: 1e-3,

		DevSubsampleSize: 15_000,

		SgdThreads:  runtime.GOMAXPROCS(0),
		AdamThreads: 1,

		Seed:         42,
		Preprocessed: true,
	}
}
