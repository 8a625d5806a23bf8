package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sequence is a batch of input sequences with shape (Batch, Steps, Features),
// stored row-major.
type Sequence struct {
	Batch    int
	Steps    int
	Features int
	Data     []float64
}

// NewSequence wraps data as a (batch, steps, features) sequence.
func NewSequence(batch, steps, features int, data []float64) (Sequence, error) {
	if batch <= 0 || steps <= 0 || features <= 0 {
		return Sequence{}, fmt.Errorf("%w: sequence dims (%d, %d, %d)", ErrShape, batch, steps, features)
	}
	if len(data) != batch*steps*features {
		return Sequence{}, fmt.Errorf("%w: %d values for shape (%d, %d, %d)", ErrShape, len(data), batch, steps, features)
	}
	return Sequence{Batch: batch, Steps: steps, Features: features, Data: data}, nil
}

// FromWindows casts row-major event windows to a (batch, window, 1) sequence.
func FromWindows(windows []int, window int) (Sequence, error) {
	if window <= 0 || len(windows)%window != 0 {
		return Sequence{}, fmt.Errorf("%w: %d identifiers do not split into windows of %d", ErrShape, len(windows), window)
	}
	data := make([]float64, len(windows))
	for i, id := range windows {
		data[i] = float64(id)
	}
	return NewSequence(len(windows)/window, window, 1, data)
}

// Zeros returns an all-zero sequence.
func Zeros(batch, steps, features int) Sequence {
	return Sequence{Batch: batch, Steps: steps, Features: features, Data: make([]float64, batch*steps*features)}
}

// slice returns rows [lo, hi) as a sequence sharing storage.
func (s Sequence) slice(lo, hi int) Sequence {
	stride := s.Steps * s.Features
	return Sequence{Batch: hi - lo, Steps: s.Steps, Features: s.Features, Data: s.Data[lo*stride : hi*stride]}
}

// step returns the (Batch x Features) input at time t.
func (s Sequence) step(t int) *mat.Dense {
	x := mat.NewDense(s.Batch, s.Features, nil)
	stride := s.Steps * s.Features
	for n := 0; n < s.Batch; n++ {
		off := n*stride + t*s.Features
		copy(x.RawRowView(n), s.Data[off:off+s.Features])
	}
	return x
}
