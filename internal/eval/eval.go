// Package eval implements the scoring primitives shared by training-time
// dev evaluation and the standalone Evaluator component:
// per-class TP/FP/FN accumulation, macro F1, accuracy, and confusable-group
// accuracy.
package eval

import "github.com/jjviana/langid/internal/langtable"

// Predictor is the minimal interface the evaluator needs from a model: map
// a piece of text to predicted-label, score. Both internal/model.Model
// (INT8, ship-time) and the trainer's FP32 forward pass satisfy it via
// thin adapters, so the same evaluator code runs at training-time
// checkpoints and at final model evaluation.
type Predictor interface {
	Predict(text string) (label string, score float32)
}

// Sample is one labeled evaluation example.
type Sample struct {
	Lang string
	Text string
}

// classCounts holds the confusion-matrix counts for one class.
type classCounts struct {
	TP, FP, FN int
}

// Result bundles the metrics names.
type Result struct {
	MacroF1          float64
	Accuracy         float64
	GroupAccuracy    float64
	ContributingClasses int
	Total            int
}

// Evaluate scores every sample with p and returns macro F1 (over classes
// with nonzero support), overall accuracy, and group accuracy (a
// prediction counts as correct if it falls in the truth's confusable
// group, per internal/langtable.SameGroup).
func Evaluate(p Predictor, samples []Sample) Result {
	counts := make(map[string]*classCounts)
	ensure := func(c string) *classCounts {
		cc, ok := counts[c]
		if !ok {
			cc = &classCounts{}
			counts[c] = cc
		}
		return cc
	}

	var correct, groupCorrect int
	for _, s := range samples {
		pred, _ := p.Predict(s.Text)
		ensure(s.Lang)
		if pred == s.Lang {
			ensure(pred).TP++
			correct++
			groupCorrect++
		} else {
			ensure(pred).FP++
			ensure(s.Lang).FN++
			if langtable.SameGroup(pred, s.Lang) {
				groupCorrect++
			}
		}
	}

	var f1Sum float64
	var contributing int
	for _, cc := range counts {
		if cc.TP+cc.FN == 0 {
			continue
		}
		contributing++
		f1Sum += f1(cc)
	}

	res := Result{
		Total:               len(samples),
		ContributingClasses: contributing,
	}
	if contributing > 0 {
		res.MacroF1 = f1Sum / float64(contributing)
	}
	if len(samples) > 0 {
		res.Accuracy = float64(correct) / float64(len(samples))
		res.GroupAccuracy = float64(groupCorrect) / float64(len(samples))
	}
	return res
}

func f1(cc *classCounts) float64 {
	var precision, recall float64
	if cc.TP+cc.FP > 0 {
		precision = float64(cc.TP) / float64(cc.TP+cc.FP)
	}
	if cc.TP+cc.FN > 0 {
		recall = float64(cc.TP) / float64(cc.TP+cc.FN)
	}
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
