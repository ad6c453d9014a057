// Command langid is the single multi-verb CLI for the language
// identifier pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/urfave/cli/v2"

	"github.com/jjviana/langid/internal/config"
	"github.com/jjviana/langid/internal/corpus"
	"github.com/jjviana/langid/internal/epoch"
	"github.com/jjviana/langid/internal/eval"
	"github.com/jjviana/langid/internal/features"
	"github.com/jjviana/langid/internal/filter"
	"github.com/jjviana/langid/internal/model"
	"github.com/jjviana/langid/internal/trainer"
	"github.com/jjviana/langid/internal/trainmodel"
)

func main() {
	app := &cli.App{
		Name:  "langid",
		Usage: "hashed-n-gram language identifier: prepare corpora, train, quantize, evaluate, predict",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug-level logging"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log warnings and errors"},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			} else if c.Bool("quiet") {
				level = slog.LevelWarn
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			prepareCommand,
			trainCommand,
			quantizeCommand,
			evaluateCommand,
			predictCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "langid: %v\n", err)
		os.Exit(1)
	}
}

var prepareCommand = &cli.Command{
	Name:      "prepare",
	Usage:     "split a raw per-language corpus into pool/dev/test",
	ArgsUsage: "<corpusDir> <workDir>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("usage: langid prepare <corpusDir> <workDir>")
		}
		corpusDir, workDir := c.Args().Get(0), c.Args().Get(1)
		cfg := corpus.DefaultConfig()
		report, err := corpus.Prepare(corpusDir, workDir, cfg)
		if err != nil {
			return err
		}
		for _, lr := range report.Languages {
			switch {
			case lr.Excluded:
				slog.Info("excluded", "lang", lr.RawCode)
			case lr.DroppedSmall:
				slog.Info("dropped (below minimum size)", "lang", lr.CanonicalCode, "deduped", lr.DedupedCount)
			default:
				slog.Info("prepared", "lang", lr.CanonicalCode, "pool", lr.PoolCount, "dev", lr.DevCount, "test", lr.TestCount)
			}
		}
		return nil
	},
}

var trainCommand = &cli.Command{
	Name:      "train",
	Usage:     "train a model over a prepared work directory (two-pass train/filter/retrain)",
	ArgsUsage: "<workDir> <outputModelPath>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "optional YAML config overriding defaults (internal/config.TrainConfig)"},
		&cli.IntFlag{Name: "num-buckets", Value: 1 << 20, Usage: "feature width, must be a power of two"},
		&cli.IntFlag{Name: "target-epoch-total", Value: 5_000_000, Usage: "target sampled lines per epoch file"},
		&cli.BoolFlag{Name: "two-pass", Value: true, Usage: "run the Filter Pass and retrain"},
		&cli.StringFlag{Name: "cpu-profile", Usage: "write a CPU profile (runtime/pprof) for the duration of training"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("usage: langid train <workDir> <outputModelPath>")
		}
		workDir, modelPath := c.Args().Get(0), c.Args().Get(1)

		cfg := config.DefaultTrainConfig()
		if p := c.String("config"); p != "" {
			loaded, err := config.Load(p)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		cfg.WorkDir = workDir
		cfg.ModelPath = modelPath
		if c.IsSet("num-buckets") || c.String("config") == "" {
			cfg.NumBuckets = c.Int("num-buckets")
		}
		if c.IsSet("two-pass") || c.String("config") == "" {
			cfg.TwoPass = c.Bool("two-pass")
		}
		if c.IsSet("cpu-profile") {
			cfg.CPUProfile = c.String("cpu-profile")
		}

		if prof := cfg.CPUProfile; prof != "" {
			f, err := os.Create(prof)
			if err != nil {
				return fmt.Errorf("creating cpu profile: %w", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("starting cpu profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		return runTrain(context.Background(), cfg, c.Int("target-epoch-total"))
	},
}

// runTrain drives full data flow: (E) sample an epoch file
// from the pool, (F) train pass 1, optionally (G) filter the pool with
// the pass-1 model and (E)+(F) retrain over the filtered pool, then (H)
// quantize and (J) save.
func runTrain(ctx context.Context, cfg config.TrainConfig, epochTarget int) error {
	dev, err := readSamples(filepath.Join(cfg.WorkDir, "dev.txt"))
	if err != nil {
		return err
	}

	poolDir := filepath.Join(cfg.WorkDir, "pool")
	fp, err := trainOnePass(ctx, cfg, poolDir, dev, epochTarget, cfg.Seed)
	if err != nil {
		return fmt.Errorf("pass 1: %w", err)
	}

	if cfg.TwoPass {
		extractor := features.New(features.Config{NumBuckets: cfg.NumBuckets, Preprocessed: true})
		filteredDir := filepath.Join(cfg.WorkDir, "pool_filtered")
		report, err := filter.Run(ctx, poolDir, filteredDir, extractor, filter.NewModelPredictor(fp), cfg.SgdThreads)
		if err != nil {
			return fmt.Errorf("filter pass: %w", err)
		}
		for _, lr := range report.Languages {
			slog.Info("filter pass", "lang", lr.Lang, "kept", lr.Kept, "total", lr.Total)
		}

		fp, err = trainOnePass(ctx, cfg, filteredDir, dev, epochTarget, cfg.Seed+1)
		if err != nil {
			return fmt.Errorf("pass 2: %w", err)
		}
	}

	if !fp.IsFinite() {
		return fmt.Errorf("final model has non-finite weights, refusing to save")
	}

	quantized := model.Quantize(fp)
	out, err := os.Create(cfg.ModelPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := model.Save(out, quantized); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}
	slog.Info("model saved", "path", cfg.ModelPath, "numClasses", quantized.NumClasses, "numBuckets", quantized.NumBuckets)
	return nil
}

func trainOnePass(ctx context.Context, cfg config.TrainConfig, poolDir string, dev []eval.Sample, epochTarget int, seed int64) (*trainmodel.Model, error) {
	sampler, err := epoch.NewSampler(poolDir, seed)
	if err != nil {
		return nil, err
	}
	cap := sampler.FlatCap(epochTarget)

	tmpDir, err := os.MkdirTemp("", "langid-epoch-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	epochFile := filepath.Join(tmpDir, "epoch.txt")
	if err := sampler.CreateEpochFile(0, cap, tmpDir, epochFile); err != nil {
		return nil, fmt.Errorf("sampling epoch file: %w", err)
	}

	tcfg := trainer.DefaultConfig(cfg.NumBuckets)
	tcfg.AdamLr, tcfg.Beta1, tcfg.Beta2, tcfg.Eps = cfg.AdamLr, cfg.Beta1, cfg.Beta2, cfg.Eps
	tcfg.SgdLrStart, tcfg.SgdLrEnd = cfg.SgdLrStart, cfg.SgdLrEnd
	tcfg.L2Lambda = cfg.L2Lambda
	tcfg.AdamEpochs, tcfg.MaxEpochs = cfg.AdamEpochs, cfg.MaxEpochs
	tcfg.MiniBatchSize, tcfg.BatchSize, tcfg.ChunkSize = cfg.MiniBatchSize, cfg.BatchSize, cfg.ChunkSize
	tcfg.CheckpointInterval, tcfg.RollingWindow = cfg.CheckpointInterval, cfg.RollingWindow
	tcfg.WithinEpochThreshold, tcfg.Patience, tcfg.AcrossEpochThreshold = cfg.WithinEpochThreshold, cfg.Patience, cfg.AcrossEpochThreshold
	tcfg.DevSubsampleSize = cfg.DevSubsampleSize
	if cfg.SgdThreads > 0 {
		tcfg.SgdThreads = cfg.SgdThreads
	}
	tcfg.AdamThreads = cfg.AdamThreads
	tcfg.Seed = seed
	tcfg.Preprocessed = true // pool files are already canonicalized by internal/corpus

	tr := trainer.New(tcfg, slog.Default())
	if err := tr.Scan(epochFile); err != nil {
		return nil, err
	}
	return tr.Train(ctx, dev)
}

var quantizeCommand = &cli.Command{
	Name:      "quantize",
	Usage:     "quantize a saved FP32 training checkpoint into a ship-time INT8 model",
	ArgsUsage: "<checkpointPath> <outputModelPath>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("usage: langid quantize <checkpointPath> <outputModelPath>")
		}
		in, err := os.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer in.Close()
		fp, err := trainmodel.LoadCheckpoint(in)
		if err != nil {
			return fmt.Errorf("loading checkpoint: %w", err)
		}
		quantized := model.Quantize(fp)
		out, err := os.Create(c.Args().Get(1))
		if err != nil {
			return err
		}
		defer out.Close()
		return model.Save(out, quantized)
	},
}

var evaluateCommand = &cli.Command{
	Name:      "evaluate",
	Usage:     "score a saved model against a labeled test file",
	ArgsUsage: "<modelPath> <testFile>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("usage: langid evaluate <modelPath> <testFile>")
		}
		m, err := loadModel(c.Args().Get(0))
		if err != nil {
			return err
		}
		samples, err := readSamples(c.Args().Get(1))
		if err != nil {
			return err
		}
		res := eval.Evaluate(modelPredictor{m}, samples)
		fmt.Printf("accuracy=%.4f macroF1=%.4f groupAccuracy=%.4f contributingClasses=%d total=%d\n",
			res.Accuracy, res.MacroF1, res.GroupAccuracy, res.ContributingClasses, res.Total)
		return nil
	},
}

var predictCommand = &cli.Command{
	Name:      "predict",
	Usage:     "predict the language of a piece of text",
	ArgsUsage: "<modelPath> <text>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "topk", Value: 1, Usage: "number of ranked predictions to print"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("usage: langid predict <modelPath> <text>")
		}
		m, err := loadModel(c.Args().Get(0))
		if err != nil {
			return err
		}
		extractor := features.New(features.Config{NumBuckets: m.NumBuckets})
		text := c.Args().Get(1)
		counts := make([]int32, extractor.NumBuckets())
		idx := extractor.Extract(text, counts, nil)
		probs := m.PredictSparse(idx, counts)

		k := c.Int("topk")
		for _, ls := range model.TopK(m.Labels, probs, k) {
			fmt.Printf("%s\t%.4f\n", ls.Label, ls.Score)
		}
		return nil
	},
}

// modelPredictor adapts internal/model.Model to eval.Predictor for the
// evaluate subcommand.
type modelPredictor struct{ m *model.Model }

func (p modelPredictor) Predict(text string) (string, float32) {
	extractor := features.New(features.Config{NumBuckets: p.m.NumBuckets})
	counts := make([]int32, extractor.NumBuckets())
	idx := extractor.Extract(text, counts, nil)
	probs := p.m.PredictSparse(idx, counts)
	bi := eval.Argmax(probs)
	return p.m.Labels[bi], probs[bi]
}

func loadModel(path string) (*model.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return model.Load(f)
}

func readSamples(path string) ([]eval.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []eval.Sample
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := string(data[start:i])
			start = i + 1
			if line == "" {
				continue
			}
			for j := 0; j < len(line); j++ {
				if line[j] == '\t' {
					out = append(out, eval.Sample{Lang: line[:j], Text: line[j+1:]})
					break
				}
			}
		}
	}
	return out, nil
}
