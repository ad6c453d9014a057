// Package errs collects the sentinel and typed errors surfaced across the
// langid pipeline, so callers can branch with errors.Is/errors.As instead of
// string matching.
package errs

import "fmt"

var (
	// ErrBadMagic is returned by model.Load when the stream does not begin
	// with the "LDM1" magic.
	ErrBadMagic = fmt.Errorf("langid: bad model magic")
	// ErrTruncated is returned by model.Load on a short read anywhere in the
	// header, label table, scales, biases, or weight matrix.
	ErrTruncated = fmt.Errorf("langid: truncated model stream")
	// ErrCorpusNotFound is returned by corpus.Prepare when the corpus
	// directory is missing or empty.
	ErrCorpusNotFound = fmt.Errorf("langid: corpus directory not found or empty")
	// ErrNoLanguages is returned when every language was dropped by the
	// exclusion list or the minimum-size policy.
	ErrNoLanguages = fmt.Errorf("langid: no languages survived corpus preparation")
	// ErrCancelled is returned when a cooperative cancel flag was observed.
	ErrCancelled = fmt.Errorf("langid: training cancelled")
	// ErrWorkerFailed wraps the first fatal error raised by any trainer
	// worker goroutine; training is abandoned and no model is saved.
	ErrWorkerFailed = fmt.Errorf("langid: worker task failed")
)

// NonFiniteError is raised when a loss value or a weight becomes NaN/Inf
// during training, carrying enough state to diagnose which epoch diverged.
type NonFiniteError struct {
	Epoch       int
	WNorm       float64
	MaxAbsWeight float64
	Where       string
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("langid: non-finite value detected at %s (epoch %d): wNorm=%.6g maxAbsWeight=%.6g",
		e.Where, e.Epoch, e.WNorm, e.MaxAbsWeight)
}

// ShapeError reports an inconsistent model shape (size mismatch between
// header fields and the data that follows).
type ShapeError struct {
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("langid: inconsistent model shape: %s", e.Detail)
}
