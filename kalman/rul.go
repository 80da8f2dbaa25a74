package kalman

import "math"

// Outcome classifies a RUL estimate.
type Outcome int

const (
	// Finite means the threshold is reached after RUL.Steps steps.
	Finite Outcome = iota
	// Unbounded means the indicator is not growing.
	Unbounded
	// Undefined means no estimate could be formed.
	Undefined
)

func (o Outcome) String() string {
	switch o {
	case Finite:
		return "finite"
	case Unbounded:
		return "unbounded"
	}
	return "undefined"
}

// Noise holds the model noise levels of a bearing.
type Noise struct {
	Process     float64 // vt
	Measurement float64 // wt
}

// RUL is the result of one remaining-useful-life evaluation.
type RUL struct {
	Steps       float64
	Outcome     Outcome
	InitialRate float64
	ESI         float64 // final indicator estimate
	Rate        float64 // final rate estimate
	Iterations  int
}

// Value returns Steps for a finite estimate, +Inf when unbounded and NaN
// when undefined.
func (r RUL) Value() float64 {
	switch r.Outcome {
	case Finite:
		return r.Steps
	case Unbounded:
		return math.Inf(1)
	}
	return math.NaN()
}

// InitialRate estimates the starting degradation rate from the last two
// indicator values before step k, falling back to MinInitialRate.
func InitialRate(history []float64, k int) float64 {
	if k <= 0 || k >= len(history) || history[k] <= Epsilon || history[k-1] <= Epsilon {
		return MinInitialRate
	}
	b := math.Abs(math.Log(history[k] / history[k-1]))
	if !(b > Epsilon) || math.IsInf(b, 0) {
		return MinInitialRate
	}
	return b
}

// EstimateRUL filters history from t0 up to, but excluding, target-1 and
// returns the number of steps until the indicator reaches gammaBar under
// the estimated exponential growth.
func EstimateRUL(history []float64, t0, target int, gammaBar float64, noise Noise) RUL {
	k := target - 1
	if t0 < 0 || t0 >= k || t0 >= len(history) || allZero(history) {
		return RUL{Outcome: Undefined}
	}

	rate := InitialRate(history, k)
	f := NewDegradation(history[t0], rate, noise.Process, noise.Measurement)
	res := RUL{InitialRate: rate}
	for t := t0; t < k && t < len(history); t++ {
		if esi, _ := f.State(); esi <= Epsilon {
			break
		}
		f.Predict()
		f.Update(history[t])
		res.Iterations++
	}

	res.ESI, res.Rate = f.State()
	switch {
	case !(res.ESI > Epsilon) || !(gammaBar > Epsilon) || math.IsNaN(res.Rate):
		res.Outcome = Undefined
	case res.Rate <= Epsilon:
		res.Outcome = Unbounded
	case gammaBar > res.ESI:
		res.Steps = math.Log(gammaBar/res.ESI) / res.Rate
	}
	return res
}

func allZero(xs []float64) bool {
	for _, x := range xs {
		if math.Abs(x) >= Epsilon {
			return false
		}
	}
	return true
}
