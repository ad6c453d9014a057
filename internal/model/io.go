package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jjviana/langid/internal/errs"
)

// magic is the 4-byte tag every model stream must begin with.
var magic = [4]byte{'L', 'D', 'M', '1'}

// maxLabelLen is the longest label (in bytes) Save accepts: each label's
// length is written as an int16, whose max value is 32767.
const maxLabelLen = 1<<15 - 1

// Save writes m to w in a fixed big-endian layout:
// magic, numBuckets, numClasses, labels (int16 length + UTF-8 bytes each),
// scales[C] float32, biases[C] float32, weights[C][B] int8 class-major.
func Save(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, int32(m.NumBuckets)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, int32(m.NumClasses)); err != nil {
		return err
	}
	for _, label := range m.Labels {
		if len(label) > maxLabelLen {
			return &errs.ShapeError{Detail: fmt.Sprintf("label %q exceeds max length", label)}
		}
		if err := binary.Write(bw, binary.BigEndian, int16(len(label))); err != nil {
			return err
		}
		if _, err := bw.WriteString(label); err != nil {
			return err
		}
	}
	for _, s := range m.Scales {
		if err := binary.Write(bw, binary.BigEndian, s); err != nil {
			return err
		}
	}
	for _, b := range m.Biases {
		if err := binary.Write(bw, binary.BigEndian, b); err != nil {
			return err
		}
	}
	for c := 0; c < m.NumClasses; c++ {
		row := m.Weights[c]
		if len(row) != m.NumBuckets {
			return &errs.ShapeError{Detail: fmt.Sprintf("class %d weight row has length %d, want %d", c, len(row), m.NumBuckets)}
		}
		raw := make([]byte, m.NumBuckets)
		for i, v := range row {
			raw[i] = byte(v)
		}
		if _, err := bw.Write(raw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a Model from r, rejecting any stream whose first four bytes
// differ from "LDM1" (errs.ErrBadMagic) and any stream with an
// inconsistent or truncated shape (errs.ErrTruncated / errs.ShapeError).
func Load(r io.Reader) (*Model, error) {
	br := bufio.NewReader(r)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTruncated, err)
	}
	if gotMagic != magic {
		return nil, errs.ErrBadMagic
	}

	var numBuckets, numClasses int32
	if err := binary.Read(br, binary.BigEndian, &numBuckets); err != nil {
		return nil, fmt.Errorf("%w: reading numBuckets: %v", errs.ErrTruncated, err)
	}
	if err := binary.Read(br, binary.BigEndian, &numClasses); err != nil {
		return nil, fmt.Errorf("%w: reading numClasses: %v", errs.ErrTruncated, err)
	}
	if numBuckets <= 0 {
		return nil, &errs.ShapeError{Detail: "numBuckets must be positive"}
	}
	if numClasses <= 0 {
		return nil, &errs.ShapeError{Detail: "numClasses must be positive"}
	}

	labels := make([]string, numClasses)
	for i := range labels {
		var l int16
		if err := binary.Read(br, binary.BigEndian, &l); err != nil {
			return nil, fmt.Errorf("%w: reading label %d length: %v", errs.ErrTruncated, i, err)
		}
		if l < 0 {
			return nil, &errs.ShapeError{Detail: fmt.Sprintf("label %d has negative length", i)}
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: reading label %d bytes: %v", errs.ErrTruncated, i, err)
		}
		if len(buf) == 0 {
			return nil, &errs.ShapeError{Detail: fmt.Sprintf("label %d has zero length", i)}
		}
		labels[i] = string(buf)
	}

	scales := make([]float32, numClasses)
	for i := range scales {
		if err := binary.Read(br, binary.BigEndian, &scales[i]); err != nil {
			return nil, fmt.Errorf("%w: reading scale %d: %v", errs.ErrTruncated, i, err)
		}
	}
	biases := make([]float32, numClasses)
	for i := range biases {
		if err := binary.Read(br, binary.BigEndian, &biases[i]); err != nil {
			return nil, fmt.Errorf("%w: reading bias %d: %v", errs.ErrTruncated, i, err)
		}
	}

	weights := make([][]int8, numClasses)
	raw := make([]byte, numBuckets)
	for c := range weights {
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, fmt.Errorf("%w: reading weights for class %d: %v", errs.ErrTruncated, c, err)
		}
		row := make([]int8, numBuckets)
		for i, v := range raw {
			row[i] = int8(v)
		}
		weights[c] = row
	}

	m := New(int(numBuckets), labels, scales, biases, weights)
	return m, nil
}
