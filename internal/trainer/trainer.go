package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/jjviana/langid/internal/errs"
	"github.com/jjviana/langid/internal/eval"
	"github.com/jjviana/langid/internal/features"
	"github.com/jjviana/langid/internal/trainmodel"
)

// Trainer orchestrates one training pass: Scan the epoch file once, then
// run the Adam→SGD epoch loop with within-epoch and across-epoch early
// stopping.
type Trainer struct {
	cfg       Config
	log       *slog.Logger
	extractor *features.Extractor

	scan     *scanResult
	model    *trainmodel.Model
	filePath string

	// Single-threaded Adam state (used when cfg.AdamThreads <= 1).
	sharedMoments *trainmodel.AdamMoments
	sharedAcc     *adamAccumulator
	sharedStepVal uint64

	// Multi-threaded (per-thread) Adam state.
	perThreadMoments []*trainmodel.AdamMoments
	perThreadAcc     []*adamAccumulator
	perThreadStep    []*localStep

	scratchPool []*scratch

	// skippedSamples counts malformed lines dropped while re-reading
	// chunks during training (mirrors scanResult.SkippedLines, which
	// covers the initial scan pass). Lines naming a label outside the
	// frozen set are a separate, cheap case handled inline in runSlice.
	skippedSamples int64
}

// New constructs a Trainer from cfg. logger may be nil, in which case
// slog.Default() is used.
func New(cfg Config, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		cfg:       cfg,
		log:       logger,
		extractor: features.New(features.Config{NumBuckets: cfg.NumBuckets, Preprocessed: cfg.Preprocessed}),
	}
}

// Scan performs Scan phase over filePath: discover and
// freeze the sorted label set, count lines, and record chunk-boundary byte
// offsets. It must be called before Train.
func (t *Trainer) Scan(filePath string) error {
	res, err := scan(filePath, t.cfg.ChunkSize)
	if err != nil {
		return err
	}
	if len(res.Labels) == 0 {
		return fmt.Errorf("langid: scan found no labels in %s", filePath)
	}
	t.scan = res
	t.filePath = filePath
	t.model = trainmodel.New(res.Labels, t.cfg.NumBuckets)

	workers := t.cfg.SgdThreads
	if t.cfg.AdamThreads > workers {
		workers = t.cfg.AdamThreads
	}
	if workers < 1 {
		workers = 1
	}
	t.scratchPool = make([]*scratch, workers)
	for i := range t.scratchPool {
		t.scratchPool[i] = newScratch(t.cfg.NumBuckets, t.model.NumClasses)
	}

	t.sharedMoments = trainmodel.NewAdamMoments(t.cfg.NumBuckets, t.model.NumClasses)
	t.sharedAcc = newAdamAccumulator(t.cfg.NumBuckets, t.model.NumClasses)

	if t.cfg.AdamThreads > 1 {
		t.perThreadMoments = make([]*trainmodel.AdamMoments, t.cfg.AdamThreads)
		t.perThreadAcc = make([]*adamAccumulator, t.cfg.AdamThreads)
		t.perThreadStep = make([]*localStep, t.cfg.AdamThreads)
		for i := 0; i < t.cfg.AdamThreads; i++ {
			t.perThreadMoments[i] = trainmodel.NewAdamMoments(t.cfg.NumBuckets, t.model.NumClasses)
			t.perThreadAcc[i] = newAdamAccumulator(t.cfg.NumBuckets, t.model.NumClasses)
			t.perThreadStep[i] = &localStep{}
		}
	}

	t.log.Info("scan complete", "lines", res.LineCount, "labels", len(res.Labels), "chunks", res.numChunks(), "skipped", res.SkippedLines)
	return nil
}

// Labels returns the frozen, sorted label set discovered by Scan.
func (t *Trainer) Labels() []string { return t.scan.Labels }

// Model returns the trainer's live FP32 model. Valid after Scan; mutated
// in place by Train.
func (t *Trainer) Model() *trainmodel.Model { return t.model }

func (t *Trainer) momentsAndStep(worker int, useAdam bool) (*trainmodel.AdamMoments, stepCounter, *adamAccumulator) {
	if t.cfg.AdamThreads > 1 {
		return t.perThreadMoments[worker], t.perThreadStep[worker], t.perThreadAcc[worker]
	}
	return t.sharedMoments, atomicStep{v: &t.sharedStepVal}, t.sharedAcc
}

// Train runs the Adam→SGD epoch loop against the file
// passed to Scan, evaluating against dev at checkpoints and epoch
// boundaries. It returns the final FP32 model (also reachable via
// t.Model()) or a fatal error; on error, no partial model should be
// persisted by the caller.
func (t *Trainer) Train(ctx context.Context, dev []eval.Sample) (*trainmodel.Model, error) {
	if t.scan == nil {
		return nil, fmt.Errorf("langid: Train called before Scan")
	}

	bestF1 := -1.0
	noImprove := 0
	sgdTotalEpochs := t.cfg.MaxEpochs - t.cfg.AdamEpochs

	for epoch := 0; epoch < t.cfg.MaxEpochs; epoch++ {
		useAdam := epoch < t.cfg.AdamEpochs
		var lr float64
		if useAdam {
			lr = t.cfg.AdamLr
		} else {
			lr = sgdLearningRate(t.cfg, epoch-t.cfg.AdamEpochs, sgdTotalEpochs)
		}

		stopped, err := t.runEpoch(ctx, epoch, useAdam, lr, dev)
		if err != nil {
			return nil, err
		}

		res := evaluateDev(t.extractor, t.model, dev)
		if !t.model.IsFinite() {
			return nil, &errs.NonFiniteError{Epoch: epoch, WNorm: t.model.Norm(), MaxAbsWeight: t.model.MaxAbsWeight(), Where: "epoch-end"}
		}
		t.log.Info("epoch complete", "epoch", epoch, "mode", modeName(useAdam), "macroF1", res.MacroF1, "accuracy", res.Accuracy, "withinEpochStop", stopped)

		if res.MacroF1 > bestF1+t.cfg.AcrossEpochThreshold {
			bestF1 = res.MacroF1
			noImprove = 0
		} else {
			noImprove++
		}
		if noImprove >= t.cfg.Patience {
			t.log.Info("early stop: patience exhausted", "epoch", epoch, "bestF1", bestF1)
			break
		}
	}
	return t.model, nil
}

func modeName(adam bool) string {
	if adam {
		return "adam"
	}
	return "sgd"
}

// runEpoch processes every chunk of the scanned file, in a per-epoch
// shuffled order, dispatching I/O batches to workers and checking for
// within-epoch early stopping at checkpoint boundaries. It returns whether
// the epoch stopped early.
func (t *Trainer) runEpoch(ctx context.Context, epoch int, useAdam bool, lr float64, dev []eval.Sample) (bool, error) {
	order := shuffleChunkOrder(t.scan.numChunks(), t.cfg.Seed, epoch)
	window := newRollingWindow(t.cfg.RollingWindow)
	linesSinceCheckpoint := 0

	for _, chunkIdx := range order {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("%w: %v", errs.ErrCancelled, err)
		}

		offset := t.scan.ChunkOffsets[chunkIdx]
		c, skipped, err := readChunk(t.filePath, offset, t.cfg.ChunkSize)
		if err != nil {
			return false, fmt.Errorf("langid: reading chunk %d: %w", chunkIdx, err)
		}
		t.skippedSamples += skipped
		c.fisherYates(chunkSeed(t.cfg.Seed, epoch, chunkIdx))

		for start := 0; start < c.Len(); start += t.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return false, fmt.Errorf("%w: %v", errs.ErrCancelled, err)
			}
			end := start + t.cfg.BatchSize
			if end > c.Len() {
				end = c.Len()
			}
			if err := t.processBatch(ctx, c, start, end, useAdam, lr); err != nil {
				return false, err
			}
			linesSinceCheckpoint += end - start

			if linesSinceCheckpoint >= t.cfg.CheckpointInterval {
				linesSinceCheckpoint = 0
				sub := subsample(dev, t.cfg.DevSubsampleSize, t.cfg.Seed+int64(epoch))
				res := evaluateDev(t.extractor, t.model, sub)
				if !t.model.IsFinite() {
					return false, &errs.NonFiniteError{Epoch: epoch, WNorm: t.model.Norm(), MaxAbsWeight: t.model.MaxAbsWeight(), Where: "checkpoint"}
				}
				window.push(res.MacroF1)
				t.log.Debug("checkpoint", "epoch", epoch, "macroF1", res.MacroF1)
				if window.full() && window.maxMinDiff() < t.cfg.WithinEpochThreshold {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// processBatch fork-joins [start,end) of chunk c across a fixed-size
// worker pool: SGD workers apply Hogwild updates directly; Adam workers
// accumulate into their (possibly per-thread) mini-batch accumulator and
// flush it once full.
func (t *Trainer) processBatch(ctx context.Context, c *chunk, start, end int, useAdam bool, lr float64) error {
	n := end - start
	workers := t.cfg.SgdThreads
	if useAdam {
		workers = t.cfg.AdamThreads
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if n == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	base := n / workers
	rem := n % workers
	lo := start
	for w := 0; w < workers; w++ {
		size := base
		if w < rem {
			size++
		}
		hi := lo + size
		workerIdx, sliceLo, sliceHi := w, lo, hi
		g.Go(func() error {
			return t.runSlice(c, sliceLo, sliceHi, workerIdx, useAdam, lr)
		})
		lo = hi
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWorkerFailed, err)
	}
	return nil
}

func (t *Trainer) runSlice(c *chunk, lo, hi, workerIdx int, useAdam bool, lr float64) error {
	sc := t.scratchPool[workerIdx]
	var moments *trainmodel.AdamMoments
	var step stepCounter
	var acc *adamAccumulator
	if useAdam {
		moments, step, acc = t.momentsAndStep(workerIdx, useAdam)
	}

	for i := lo; i < hi; i++ {
		lang := c.Langs[i]
		text := c.Texts[i]
		classIdx, ok := t.scan.LabelIndex[lang]
		if !ok {
			continue // unknown label: skippable data
		}
		idx := t.extractor.Extract(text, sc.counts, sc.idxBuf[:0])
		sc.idxBuf = idx

		loss := forwardGrad(t.model, idx, sc, classIdx)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			features.ResetTouched(sc.counts, idx)
			return &errs.NonFiniteError{Epoch: -1, WNorm: t.model.Norm(), MaxAbsWeight: t.model.MaxAbsWeight(), Where: "per-sample loss"}
		}

		if useAdam {
			acc.accumulate(idx, sc.counts, sc.logits)
			if acc.full(t.cfg.MiniBatchSize) {
				acc.applyAndReset(t.model, moments, step, t.cfg)
			}
		} else {
			sgdUpdate(t.model, idx, sc, float32(lr), float32(t.cfg.L2Lambda))
		}
		features.ResetTouched(sc.counts, idx)
	}
	return nil
}
