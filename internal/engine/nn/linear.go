package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// linear is a dense affine layer y = x·Wᵀ + b.
type linear struct {
	weight *Param // out x in
	bias   *Param // out
}

func newLinear(prefix string, in, out int, rng *rand.Rand) *linear {
	l := &linear{
		weight: newParam(prefix+".weight", out, in),
		bias:   newParam(prefix+".bias", out),
	}
	k := 1 / math.Sqrt(float64(in))
	uniform(l.weight.Value, k, rng)
	uniform(l.bias.Value, k, rng)
	return l
}

func (l *linear) params() []*Param {
	return []*Param{l.weight, l.bias}
}

func (l *linear) forward(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out, _ := l.weight.Value.Dims()
	y := mat.NewDense(n, out, nil)
	y.Mul(x, l.weight.Value.T())
	addRowVector(y, l.bias.Value)
	return y
}

// backward adds parameter gradients for upstream gradient dy and input x to
// grads and returns the gradient w.r.t. x.
func (l *linear) backward(dy, x *mat.Dense, grads map[*Param]*mat.Dense) *mat.Dense {
	gw := grads[l.weight]
	tmp := zerosLike(gw)
	tmp.Mul(dy.T(), x)
	gw.Add(gw, tmp)
	addColumnSums(grads[l.bias], dy)

	n, _ := x.Dims()
	_, in := l.weight.Value.Dims()
	dx := mat.NewDense(n, in, nil)
	dx.Mul(dy, l.weight.Value)
	return dx
}
