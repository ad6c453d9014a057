package trainer

import "github.com/jjviana/langid/internal/trainmodel"

// sgdUpdate applies one online-SGD step directly to the shared weight
// matrix, Hogwild-style: no locks, no atomics, tolerating torn reads and
// stale writes from concurrent workers. g holds the gradient w.r.t. logits (s.logits after forwardGrad).
func sgdUpdate(m *trainmodel.Model, idx []int32, s *scratch, lr, l2Lambda float32) {
	g := s.logits
	for _, b := range idx {
		row := m.Row(int(b))
		f := float32(s.counts[b])
		for k := range row {
			row[k] -= lr * (g[k]*f + l2Lambda*row[k])
		}
	}
	for k := range m.Biases {
		m.Biases[k] -= lr * g[k]
	}
}

// sgdLearningRate implements SGD LR schedule:
// lr(sgdEpoch) = sgdLrStart + frac*(sgdLrEnd - sgdLrStart),
// frac = sgdEpoch / max(1, sgdTotalEpochs-1).
func sgdLearningRate(cfg Config, sgdEpoch, sgdTotalEpochs int) float64 {
	denom := sgdTotalEpochs - 1
	if denom < 1 {
		denom = 1
	}
	frac := float64(sgdEpoch) / float64(denom)
	return cfg.SgdLrStart + frac*(cfg.SgdLrEnd-cfg.SgdLrStart)
}
