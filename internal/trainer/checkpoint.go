package trainer

import (
	"math/rand"

	"github.com/jjviana/langid/internal/eval"
	"github.com/jjviana/langid/internal/features"
	"github.com/jjviana/langid/internal/trainmodel"
)

// fp32Predictor adapts the trainer's live FP32 weights to eval.Predictor,
// so internal/eval.Evaluate can score them exactly as it scores the
// shipped INT8 model.
type fp32Predictor struct {
	extractor *features.Extractor
	model     *trainmodel.Model
}

func (p fp32Predictor) Predict(text string) (string, float32) {
	counts := make([]int32, p.extractor.NumBuckets())
	idx := p.extractor.Extract(text, counts, nil)

	logits := make([]float32, p.model.NumClasses)
	copy(logits, p.model.Biases)
	for _, b := range idx {
		row := p.model.Row(int(b))
		f := float32(counts[b])
		for k := range logits {
			logits[k] += row[k] * f
		}
	}
	probs := make([]float32, len(logits))
	eval.Softmax(logits, probs)

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return p.model.Labels[best], probs[best]
}

// evaluateDev scores samples against model's live FP32 weights, used for
// both within-epoch checkpoints and the end-of-epoch dev pass.
func evaluateDev(extractor *features.Extractor, model *trainmodel.Model, samples []eval.Sample) eval.Result {
	return eval.Evaluate(fp32Predictor{extractor: extractor, model: model}, samples)
}

// subsample deterministically draws n samples (seeded by seed), or returns
// samples unchanged if n is non-positive or exceeds the set's size. Used to
// keep within-epoch checkpoint evaluation cheap on large dev sets.
func subsample(samples []eval.Sample, n int, seed int64) []eval.Sample {
	if n <= 0 || n >= len(samples) {
		return samples
	}
	r := rand.New(rand.NewSource(seed))
	perm := r.Perm(len(samples))[:n]
	out := make([]eval.Sample, n)
	for i, j := range perm {
		out[i] = samples[j]
	}
	return out
}

type rollingWindow struct {
	vals []float64
	cap  int
}

func newRollingWindow(cap int) *rollingWindow {
	return &rollingWindow{cap: cap}
}

func (w *rollingWindow) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.cap {
		w.vals = w.vals[1:]
	}
}

func (w *rollingWindow) full() bool { return len(w.vals) >= w.cap }

func (w *rollingWindow) maxMinDiff() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	min, max := w.vals[0], w.vals[0]
	for _, v := range w.vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}
