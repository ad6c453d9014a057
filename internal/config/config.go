// Package config holds the plain, serializable configuration record the
// CLI loads.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TrainConfig is the user-facing training configuration, loadable from a
// YAML file via Load and overridable by CLI flags (flags win: cmd/langid
// applies flag values over whatever Load returned).
type TrainConfig struct {
	CorpusDir string `yaml:"corpusDir"`
	WorkDir   string `yaml:"workDir"`
	ModelPath string `yaml:"modelPath"`

	NumBuckets int `yaml:"numBuckets"`

	AdamLr float64 `yaml:"adamLr"`
	Beta1  float64 `yaml:"beta1"`
	Beta2  float64 `yaml:"beta2"`
	Eps    float64 `yaml:"eps"`

	SgdLrStart float64 `yaml:"sgdLrStart"`
	SgdLrEnd   float64 `yaml:"sgdLrEnd"`

	L2Lambda float64 `yaml:"l2Lambda"`

	AdamEpochs int `yaml:"adamEpochs"`
	MaxEpochs  int `yaml:"maxEpochs"`

	MiniBatchSize int `yaml:"miniBatchSize"`
	BatchSize     int `yaml:"batchSize"`
	ChunkSize     int `yaml:"chunkSize"`

	CheckpointInterval   int     `yaml:"checkpointInterval"`
	RollingWindow        int     `yaml:"rollingWindow"`
	WithinEpochThreshold float64 `yaml:"withinEpochThreshold"`
	Patience             int     `yaml:"patience"`
	AcrossEpochThreshold float64 `yaml:"acrossEpochThreshold"`

	DevSubsampleSize int `yaml:"devSubsampleSize"`

	SgdThreads  int `yaml:"sgdThreads"`
	AdamThreads int `yaml:"adamThreads"`

	Seed int64 `yaml:"seed"`

	TwoPass bool `yaml:"twoPass"` // run Filter Pass between two training passes

	Verbose bool `yaml:"verbose"`
	Quiet   bool `yaml:"quiet"`

	CPUProfile string `yaml:"cpuProfile"` // if set (and --cpu-profile is not), a CPU profile is written here via runtime/pprof
}

// DefaultTrainConfig seeds every numeric field from internal/trainer's
// documented defaults; paths and profiling are left empty.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		NumBuckets: 1 << 20,

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

		SgdThreads:  0, // 0 means "default to GOMAXPROCS", resolved by the caller
		AdamThreads: 1,

		Seed:    42,
		TwoPass: true,
	}
}

// Load reads a YAML file at path into a TrainConfig seeded with
// DefaultTrainConfig, so a partial file only overrides the fields it
// names.
func Load(path string) (TrainConfig, error) {
	cfg := DefaultTrainConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, for `langid train --dump-config`-style
// tooling and for round-trip tests.
func Save(path string, cfg TrainConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
