package eval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePredictor returns a canned prediction per input text, for
// hand-building a confusion matrix.
type fakePredictor map[string]string

func (f fakePredictor) Predict(text string) (string, float32) {
	return f[text], 1.0
}

func TestEvaluateMacroF1ClosedForm(t *testing.T) {
	// 3 "eng" samples: 2 correct, 1 predicted as "fra".
	// 2 "fra" samples: 1 correct, 1 predicted as "eng".
	p := fakePredictor{
		"e1": "eng", "e2": "eng", "e3": "fra",
		"f1": "fra", "f2": "eng",
	}
	samples := []Sample{
		{Lang: "eng", Text: "e1"},
		{Lang: "eng", Text: "e2"},
		{Lang: "eng", Text: "e3"},
		{Lang: "fra", Text: "f1"},
		{Lang: "fra", Text: "f2"},
	}
	res := Evaluate(p, samples)

	// eng: TP=2, FP=1 (f2 predicted eng), FN=1 (e3 predicted fra)
	// precision = 2/3, recall = 2/3, f1 = 2/3
	// fra: TP=1, FP=1 (e3 predicted fra), FN=1 (f2 predicted eng)
	// precision = 1/2, recall = 1/2, f1 = 1/2
	wantF1 := (2.0/3.0 + 1.0/2.0) / 2.0
	require.InDelta(t, wantF1, res.MacroF1, 1e-12)
	require.InDelta(t, 3.0/5.0, res.Accuracy, 1e-12)
	require.Equal(t, 2, res.ContributingClasses)
}

func TestEvaluateGroupAccuracy(t *testing.T) {
	p := fakePredictor{"b1": "hrv", "b2": "srp"}
	samples := []Sample{
		{Lang: "bos", Text: "b1"},
		{Lang: "bos", Text: "b2"},
	}
	res := Evaluate(p, samples)
	require.Equal(t, 0.0, res.Accuracy)
	require.Equal(t, 1.0, res.GroupAccuracy)
}

func TestEvaluateEmptySamples(t *testing.T) {
	res := Evaluate(fakePredictor{}, nil)
	require.Equal(t, 0, res.Total)
	require.Equal(t, 0.0, res.MacroF1)
}

func TestEvaluateIgnoresZeroSupportClasses(t *testing.T) {
	// A class that is predicted but is never a true label has FP but
	// TP+FN==0, so it is excluded from macro F1 and does not dilute it.
	p := fakePredictor{"a1": "deu"}
	samples := []Sample{{Lang: "eng", Text: "a1"}}
	res := Evaluate(p, samples)
	// eng has TP=0,FP=0,FN=1 -> contributes F1=0
	// deu has TP=0,FP=1,FN=0 -> TP+FN==0, excluded
	require.Equal(t, 1, res.ContributingClasses)
	require.Equal(t, 0.0, res.MacroF1)
}
