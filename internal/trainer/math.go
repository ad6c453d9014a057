package trainer

import (
	"math"

	"github.com/jjviana/langid/internal/eval"
	"github.com/jjviana/langid/internal/trainmodel"
)

// scratch holds the thread-local buffers one worker goroutine reuses
// across every sample in its assigned slice: feature buffer, logit
// buffer, non-zero-index buffer, reused across samples to avoid
// allocation.
type scratch struct {
	counts []int32
	idxBuf []int32
	logits []float32
	probs  []float32
}

func newScratch(numBuckets, numClasses int) *scratch {
	return &scratch{
		counts: make([]int32, numBuckets),
		logits: make([]float32, numClasses),
		probs:  make([]float32, numClasses),
	}
}

// forwardGrad computes the sparse forward pass and the gradient w.r.t.
// logits for one sample.
// It reads m.Weights/m.Biases (possibly concurrently mutated by other
// Hogwild workers — torn 32-bit float reads are tolerated)
// and leaves the gradient in s.logits (overwriting it in place), with the
// loss returned separately.
//
// idx is the active-bucket list for this sample; it must already be
// populated in s.idxBuf by the caller via the feature extractor.
func forwardGrad(m *trainmodel.Model, idx []int32, s *scratch, classOf int) (loss float64) {
	c := m.NumClasses
	copy(s.logits, m.Biases)
	for _, b := range idx {
		row := m.Row(int(b))
		f := float32(s.counts[b])
		for k := 0; k < c; k++ {
			s.logits[k] += row[k] * f
		}
	}
	eval.Softmax(s.logits, s.probs)

	p := s.probs[classOf]
	if p < 1e-10 {
		p = 1e-10
	}
	loss = -math.Log(float64(p))

	// Gradient w.r.t. logits overwrites s.logits: g[c] = prob[c] - 1{c==y}.
	copy(s.logits, s.probs)
	s.logits[classOf] -= 1
	return loss
}
