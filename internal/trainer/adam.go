package trainer

import (
	"math"
	"sync/atomic"

	"github.com/jjviana/langid/internal/trainmodel"
)

// stepCounter abstracts the Adam step counter: a single shared atomic
// counter in single-threaded Adam, or a plain per-worker counter when
// AdamThreads > 1.
type stepCounter interface {
	Next() uint64
}

// atomicStep is the shared counter used in single-threaded Adam.
type atomicStep struct{ v *uint64 }

func (s atomicStep) Next() uint64 { return atomic.AddUint64(s.v, 1) }

// localStep is a per-thread counter used when AdamThreads > 1; it is only
// ever touched by the one goroutine that owns it, so no synchronization
// is needed.
type localStep struct{ v uint64 }

func (s *localStep) Next() uint64 { s.v++; return s.v }

// adamAccumulator accumulates gradients over one Adam mini-batch. gradW is
// a dense NumBuckets*NumClasses buffer; touchedMask/touchedList implement
// the same "reset only what you touched" trick internal/features uses, so
// applyAndReset doesn't have to zero the whole (sparse) matrix.
type adamAccumulator struct {
	numClasses  int
	gradW       []float32
	gradBias    []float32
	touchedMask []bool
	touchedList []int32
	inBatch     int
}

func newAdamAccumulator(numBuckets, numClasses int) *adamAccumulator {
	return &adamAccumulator{
		numClasses:  numClasses,
		gradW:       make([]float32, numBuckets*numClasses),
		gradBias:    make([]float32, numClasses),
		touchedMask: make([]bool, numBuckets),
	}
}

// accumulate folds one sample's gradient (g, the post-forwardGrad s.logits)
// into the mini-batch accumulator.
func (a *adamAccumulator) accumulate(idx []int32, counts []int32, g []float32) {
	c := a.numClasses
	for _, b := range idx {
		bi := int(b)
		if !a.touchedMask[bi] {
			a.touchedMask[bi] = true
			a.touchedList = append(a.touchedList, b)
		}
		off := bi * c
		f := float32(counts[bi])
		row := a.gradW[off : off+c]
		for k := 0; k < c; k++ {
			row[k] += g[k] * f
		}
	}
	for k := 0; k < c; k++ {
		a.gradBias[k] += g[k]
	}
	a.inBatch++
}

// full reports whether the accumulator has reached miniBatchSize samples.
func (a *adamAccumulator) full(miniBatchSize int) bool { return a.inBatch >= miniBatchSize }

// applyAndReset performs one Adam update over every touched bucket plus
// the (always dense) bias vector, then zeroes the accumulator rows as
// they are consumed.
func (a *adamAccumulator) applyAndReset(m *trainmodel.Model, moments *trainmodel.AdamMoments, step stepCounter, cfg Config) {
	if a.inBatch == 0 {
		return
	}
	t := step.Next()
	beta1, beta2, eps := cfg.Beta1, cfg.Beta2, cfg.Eps
	bc1 := 1 - math.Pow(beta1, float64(t))
	bc2 := 1 - math.Pow(beta2, float64(t))
	mb := float32(a.inBatch)
	c := a.numClasses

	for _, b := range a.touchedList {
		bi := int(b)
		off := bi * c
		gradRow := a.gradW[off : off+c]
		mRow, vRow := moments.Row(bi, c)
		wRow := m.Row(bi)
		for k := 0; k < c; k++ {
			gPrime := float64(gradRow[k]) / float64(mb)
			mRow[k] = float32(beta1*float64(mRow[k]) + (1-beta1)*gPrime)
			vRow[k] = float32(beta2*float64(vRow[k]) + (1-beta2)*gPrime*gPrime)
			delta := cfg.AdamLr * (float64(mRow[k]) / bc1) / (math.Sqrt(float64(vRow[k])/bc2) + eps)
			wRow[k] -= float32(delta)
			wRow[k] -= float32(cfg.AdamLr * cfg.L2Lambda * float64(wRow[k]))
			gradRow[k] = 0
		}
		a.touchedMask[bi] = false
	}
	a.touchedList = a.touchedList[:0]

	for k := 0; k < c; k++ {
		gPrime := float64(a.gradBias[k]) / float64(mb)
		moments.MBias[k] = float32(beta1*float64(moments.MBias[k]) + (1-beta1)*gPrime)
		moments.VBias[k] = float32(beta2*float64(moments.VBias[k]) + (1-beta2)*gPrime*gPrime)
		delta := cfg.AdamLr * (float64(moments.MBias[k]) / bc1) / (math.Sqrt(float64(moments.VBias[k])/bc2) + eps)
		m.Biases[k] -= float32(delta)
		a.gradBias[k] = 0
	}
	a.inBatch = 0
}
