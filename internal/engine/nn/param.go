package nn

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Param is a named trainable tensor with its accumulated gradient. Value and
// Grad are stored as matrices; Shape is the tensor shape used in checkpoints,
// where biases are one-dimensional.
type Param struct {
	Name  string
	Shape []int
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, shape ...int) *Param {
	r, c := 1, shape[0]
	if len(shape) == 2 {
		r, c = shape[0], shape[1]
	}
	return &Param{
		Name:  name,
		Shape: shape,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// Size returns the number of scalar entries.
func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

func zerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

// addRowVector adds the 1 x c vector b to every row of m.
func addRowVector(m, b *mat.Dense) {
	bias := b.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), bias)
	}
}

// addColumnSums adds the column sums of m into the 1 x c matrix dst.
func addColumnSums(dst, m *mat.Dense) {
	out := dst.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(out, m.RawRowView(i))
	}
}
