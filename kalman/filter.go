// Package kalman tracks exponential bearing degradation with an Extended
// Kalman Filter and extrapolates the remaining useful life.
//
// The state is x = [esi, b] with transition esi' = esi·exp(b), b' = b, and
// the indicator itself is observed: z = esi + noise.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// Epsilon is the magnitude below which indicator values and rates
	// count as zero.
	Epsilon = 1e-9
	// MinInitialRate seeds the rate when the history cannot provide one.
	MinInitialRate = 0.001

	initialVariance = 0.1
	minInnovation   = 1e-12
)

// Degradation is the filter state for one RUL evaluation.
type Degradation struct {
	x *mat.VecDense
	p *mat.Dense
	q *mat.Dense
	r float64
	h *mat.VecDense
	i *mat.DiagDense
}

// NewDegradation starts a filter at [esi, rate] with covariance
// diag(0.1, 0.1), process noise diag(vt², 0) and measurement noise wt².
func NewDegradation(esi, rate, vt, wt float64) *Degradation {
	return &Degradation{
		x: mat.NewVecDense(2, []float64{esi, rate}),
		p: mat.NewDense(2, 2, []float64{initialVariance, 0, 0, initialVariance}),
		q: mat.NewDense(2, 2, []float64{vt * vt, 0, 0, 0}),
		r: wt * wt,
		h: mat.NewVecDense(2, []float64{1, 0}),
		i: mat.NewDiagDense(2, []float64{1, 1}),
	}
}

// Predict propagates the state one step through the exponential model and
// the covariance through its Jacobian.
func (d *Degradation) Predict() {
	esi, b := d.x.AtVec(0), d.x.AtVec(1)
	e := math.Exp(b)
	f := mat.NewDense(2, 2, []float64{
		e, e * esi,
		0, 1,
	})
	d.x.SetVec(0, e*esi)

	var p mat.Dense
	p.Product(f, d.p, f.T())
	p.Add(&p, d.q)
	d.p = &p
}

// Update corrects the predicted state with the observation z and returns
// the innovation. A vanishing innovation variance zeroes the gain.
func (d *Degradation) Update(z float64) float64 {
	innovation := z - mat.Dot(d.h, d.x)

	var ph mat.VecDense
	ph.MulVec(d.p, d.h)
	s := mat.Dot(d.h, &ph) + d.r

	k := mat.NewVecDense(2, nil)
	if math.Abs(s) >= minInnovation {
		k.ScaleVec(1/s, &ph)
	}

	var x mat.VecDense
	x.AddScaledVec(d.x, innovation, k)
	d.x = &x

	var ikh, p mat.Dense
	ikh.Outer(1, k, d.h)
	ikh.Sub(d.i, &ikh)
	p.Mul(&ikh, d.p)
	d.p = &p
	return innovation
}

// State returns the indicator and rate estimates.
func (d *Degradation) State() (esi, rate float64) {
	return d.x.AtVec(0), d.x.AtVec(1)
}

// Covariance returns a copy of the state covariance.
func (d *Degradation) Covariance() *mat.Dense {
	return mat.DenseCopyOf(d.p)
}
