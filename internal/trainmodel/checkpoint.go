package trainmodel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jjviana/langid/internal/errs"
)

// checkpointMagic distinguishes an FP32 training checkpoint from a
// shipped INT8 model (internal/model's "LDM1" stream) — the two formats
// are never interchangeable, and Load rejects the wrong one early.
var checkpointMagic = [4]byte{'L', 'T', 'C', '1'}

// SaveCheckpoint persists the live FP32 model to w, big-endian, as a
// stream LoadCheckpoint (and so `langid quantize`) can read back. Adam
// moments are not included. The trainer does not call it, and no code
// path resumes training from a checkpoint.
func SaveCheckpoint(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(checkpointMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, int32(m.NumBuckets)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, int32(m.NumClasses)); err != nil {
		return err
	}
	for _, label := range m.Labels {
		if err := binary.Write(bw, binary.BigEndian, int16(len(label))); err != nil {
			return err
		}
		if _, err := bw.WriteString(label); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.BigEndian, m.Biases); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, m.Weights); err != nil {
		return err
	}
	return bw.Flush()
}

// LoadCheckpoint reads back a stream written by SaveCheckpoint.
func LoadCheckpoint(r io.Reader) (*Model, error) {
	br := bufio.NewReader(r)
	var got [4]byte
	if _, err := io.ReadFull(br, got[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
	}
	if got != checkpointMagic {
		return nil, errs.ErrBadMagic
	}

	var numBuckets, numClasses int32
	if err := binary.Read(br, binary.BigEndian, &numBuckets); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
	}
	if err := binary.Read(br, binary.BigEndian, &numClasses); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
	}
	if numBuckets < 0 || numClasses < 0 {
		return nil, &errs.ShapeError{Detail: "negative numBuckets/numClasses in checkpoint"}
	}

	labels := make([]string, numClasses)
	for i := range labels {
		var n int16
		if err := binary.Read(br, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
		}
		labels[i] = string(buf)
	}

	m := New(labels, int(numBuckets))
	if err := binary.Read(br, binary.BigEndian, m.Biases); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
	}
	if err := binary.Read(br, binary.BigEndian, m.Weights); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
	}
	return m, nil
}
