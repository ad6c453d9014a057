package model

import (
	"math"

	"github.com/jjviana/langid/internal/trainmodel"
)

// Quantize converts the trainer's bucket-major FP32 model into the
// class-major INT8 ship model. For each class row:
//
//	maxAbs = max_b |w[c][b]|
//	scale  = maxAbs/127 if maxAbs>0 else 1
//	q[c][b] = clip(round(w[c][b]/scale), -127, 127)
//
// Biases and labels are copied verbatim; numClasses/numBuckets unchanged.
func Quantize(fp *trainmodel.Model) *Model {
	weights := make([][]int8, fp.NumClasses)
	scales := make([]float32, fp.NumClasses)
	biases := append([]float32(nil), fp.Biases...)

	for c := 0; c < fp.NumClasses; c++ {
		var maxAbs float64
		for b := 0; b < fp.NumBuckets; b++ {
			w := float64(fp.Row(b)[c])
			if a := math.Abs(w); a > maxAbs {
				maxAbs = a
			}
		}
		scale := 1.0
		if maxAbs > 0 {
			scale = maxAbs / 127.0
		}
		scales[c] = float32(scale)

		row := make([]int8, fp.NumBuckets)
		for b := 0; b < fp.NumBuckets; b++ {
			w := float64(fp.Row(b)[c])
			q := math.Round(w / scale)
			if q > 127 {
				q = 127
			} else if q < -127 {
				q = -127
			}
			row[b] = int8(q)
		}
		weights[c] = row
	}

	return New(fp.NumBuckets, append([]string(nil), fp.Labels...), scales, biases, weights)
}
