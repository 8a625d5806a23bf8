package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// AdamConfig holds Adam hyperparameters.
type AdamConfig struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
}

// DefaultAdam returns the usual defaults: lr 1e-3, betas (0.9, 0.999), eps 1e-8.
func DefaultAdam() AdamConfig {
	return AdamConfig{LR: 1e-3, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}
}

// Adam applies bias-corrected Adam updates to a fixed set of parameters.
type Adam struct {
	cfg    AdamConfig
	params []*Param
	m, v   []*mat.Dense
	t      int
}

// NewAdam returns an optimizer over params with zeroed moment estimates.
// Zero fields of cfg take their DefaultAdam values.
func NewAdam(params []*Param, cfg AdamConfig) *Adam {
	def := DefaultAdam()
	if cfg.LR == 0 {
		cfg.LR = def.LR
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = def.Beta1
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = def.Beta2
	}
	if cfg.Eps == 0 {
		cfg.Eps = def.Eps
	}
	a := &Adam{cfg: cfg, params: params}
	for _, p := range params {
		a.m = append(a.m, zerosLike(p.Value))
		a.v = append(a.v, zerosLike(p.Value))
	}
	return a
}

// Step updates every parameter from its accumulated gradient.
func (a *Adam) Step() {
	a.t++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	c1 := 1 - math.Pow(b1, float64(a.t))
	c2 := 1 - math.Pow(b2, float64(a.t))

	for k, p := range a.params {
		w, g := p.Value.RawMatrix().Data, p.Grad.RawMatrix().Data
		m, v := a.m[k].RawMatrix().Data, a.v[k].RawMatrix().Data
		for i := range w {
			m[i] = b1*m[i] + (1-b1)*g[i]
			v[i] = b2*v[i] + (1-b2)*g[i]*g[i]
			mHat := m[i] / c1
			vHat := v[i] / c2
			w[i] -= a.cfg.LR * mHat / (math.Sqrt(vHat) + a.cfg.Eps)
		}
	}
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }
