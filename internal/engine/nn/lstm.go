package nn

import (
	"math"
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// lstmLayer is one layer of a stacked LSTM. Weight layout follows the common
// convention: rows of weightIH/weightHH and entries of the biases are the
// input, forget, cell and output gates, in that order, each hidden wide.
type lstmLayer struct {
	in, hidden int

	weightIH *Param // 4H x in
	weightHH *Param // 4H x H
	biasIH   *Param // 4H
	biasHH   *Param // 4H
}

// lstmCache holds one time step's activations for backpropagation.
type lstmCache struct {
	x, hPrev, cPrev *mat.Dense
	i, f, g, o      *mat.Dense
	c, tanhC        *mat.Dense
}

func newLSTMLayer(index, in, hidden int, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		in:       in,
		hidden:   hidden,
		weightIH: newParam(layerName("weight_ih", index), 4*hidden, in),
		weightHH: newParam(layerName("weight_hh", index), 4*hidden, hidden),
		biasIH:   newParam(layerName("bias_ih", index), 4*hidden),
		biasHH:   newParam(layerName("bias_hh", index), 4*hidden),
	}
	k := 1 / math.Sqrt(float64(hidden))
	for _, p := range l.params() {
		uniform(p.Value, k, rng)
	}
	return l
}

func layerName(kind string, index int) string {
	return "lstm." + kind + "_l" + strconv.Itoa(index)
}

func (l *lstmLayer) params() []*Param {
	return []*Param{l.weightIH, l.weightHH, l.biasIH, l.biasHH}
}

// forward runs the layer over xs (one n x in matrix per time step) starting
// from zero hidden and cell state.
func (l *lstmLayer) forward(xs []*mat.Dense) ([]*mat.Dense, []lstmCache) {
	n, _ := xs[0].Dims()
	h := l.hidden

	hPrev := mat.NewDense(n, h, nil)
	cPrev := mat.NewDense(n, h, nil)
	hs := make([]*mat.Dense, len(xs))
	caches := make([]lstmCache, len(xs))

	z := mat.NewDense(n, 4*h, nil)
	rec := mat.NewDense(n, 4*h, nil)
	for t, x := range xs {
		z.Mul(x, l.weightIH.Value.T())
		rec.Mul(hPrev, l.weightHH.Value.T())
		z.Add(z, rec)
		addRowVector(z, l.biasIH.Value)
		addRowVector(z, l.biasHH.Value)

		cc := lstmCache{
			x: x, hPrev: hPrev, cPrev: cPrev,
			i: mat.NewDense(n, h, nil), f: mat.NewDense(n, h, nil),
			g: mat.NewDense(n, h, nil), o: mat.NewDense(n, h, nil),
			c: mat.NewDense(n, h, nil), tanhC: mat.NewDense(n, h, nil),
		}
		hNext := mat.NewDense(n, h, nil)
		for r := 0; r < n; r++ {
			zr := z.RawRowView(r)
			ir, fr, gr, or := cc.i.RawRowView(r), cc.f.RawRowView(r), cc.g.RawRowView(r), cc.o.RawRowView(r)
			cr, tr := cc.c.RawRowView(r), cc.tanhC.RawRowView(r)
			cp, hr := cPrev.RawRowView(r), hNext.RawRowView(r)
			for j := 0; j < h; j++ {
				ir[j] = sigmoid(zr[j])
				fr[j] = sigmoid(zr[h+j])
				gr[j] = math.Tanh(zr[2*h+j])
				or[j] = sigmoid(zr[3*h+j])
				cr[j] = fr[j]*cp[j] + ir[j]*gr[j]
				tr[j] = math.Tanh(cr[j])
				hr[j] = or[j] * tr[j]
			}
		}
		caches[t] = cc
		hs[t] = hNext
		hPrev, cPrev = hNext, cc.c
	}
	return hs, caches
}

// backward propagates dhs (gradient w.r.t. each step's hidden output; nil
// entries mean zero) through time. Parameter gradients are added to grads,
// keyed by parameter. It returns the gradient w.r.t. each step's input.
func (l *lstmLayer) backward(dhs []*mat.Dense, caches []lstmCache, grads map[*Param]*mat.Dense) []*mat.Dense {
	n, _ := caches[0].x.Dims()
	h := l.hidden

	dxs := make([]*mat.Dense, len(caches))
	dhNext := mat.NewDense(n, h, nil)
	dcNext := mat.NewDense(n, h, nil)
	dz := mat.NewDense(n, 4*h, nil)
	tmpIH := zerosLike(l.weightIH.Value)
	tmpHH := zerosLike(l.weightHH.Value)

	gIH, gHH := grads[l.weightIH], grads[l.weightHH]
	gBI, gBH := grads[l.biasIH], grads[l.biasHH]

	for t := len(caches) - 1; t >= 0; t-- {
		cc := caches[t]
		dcPrev := mat.NewDense(n, h, nil)
		for r := 0; r < n; r++ {
			dhr, dcr := dhNext.RawRowView(r), dcNext.RawRowView(r)
			var up []float64
			if dhs[t] != nil {
				up = dhs[t].RawRowView(r)
			}
			ir, fr, gr, or := cc.i.RawRowView(r), cc.f.RawRowView(r), cc.g.RawRowView(r), cc.o.RawRowView(r)
			tr, cp := cc.tanhC.RawRowView(r), cc.cPrev.RawRowView(r)
			zr, dcp := dz.RawRowView(r), dcPrev.RawRowView(r)
			for j := 0; j < h; j++ {
				dh := dhr[j]
				if up != nil {
					dh += up[j]
				}
				dc := dcr[j] + dh*or[j]*(1-tr[j]*tr[j])
				do := dh * tr[j]
				di := dc * gr[j]
				dg := dc * ir[j]
				df := dc * cp[j]
				dcp[j] = dc * fr[j]

				zr[j] = di * ir[j] * (1 - ir[j])
				zr[h+j] = df * fr[j] * (1 - fr[j])
				zr[2*h+j] = dg * (1 - gr[j]*gr[j])
				zr[3*h+j] = do * or[j] * (1 - or[j])
			}
		}

		tmpIH.Mul(dz.T(), cc.x)
		gIH.Add(gIH, tmpIH)
		tmpHH.Mul(dz.T(), cc.hPrev)
		gHH.Add(gHH, tmpHH)
		addColumnSums(gBI, dz)
		addColumnSums(gBH, dz)

		dx := mat.NewDense(n, l.in, nil)
		dx.Mul(dz, l.weightIH.Value)
		dxs[t] = dx

		dhNext = mat.NewDense(n, h, nil)
		dhNext.Mul(dz, l.weightHH.Value)
		dcNext = dcPrev
	}
	return dxs
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// uniform fills m with samples from U(-k, k).
func uniform(m *mat.Dense, k float64, rng *rand.Rand) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = (rng.Float64()*2 - 1) * k
		}
	}
}
