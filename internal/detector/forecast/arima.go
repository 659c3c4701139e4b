package forecast

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Order is an ARIMA (p, d, q) specification.
type Order struct {
	P int // Autoregressive terms
	D int // Differencing passes
	Q int // Moving-average terms
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// ARIMA fits an ARIMA(p,d,q) model to each window from scratch by
// conditional sum of squares and forecasts one step ahead.
type ARIMA struct {
	Order         Order
	MaxIterations int // Nelder-Mead major iteration cap; 0 means unlimited
}

// NewARIMA creates an ARIMA model of the given order.
func NewARIMA(order Order, maxIterations int) *ARIMA {
	return &ARIMA{Order: order, MaxIterations: maxIterations}
}

func (a *ARIMA) Name() string { return ModelARIMA }

// MinWindow leaves more residual terms than free parameters after
// differencing and the AR lag.
func (a *ARIMA) MinWindow() int {
	return a.Order.D + 2*a.Order.P + a.Order.Q + 2
}

// Forecast implements Model.
func (a *ARIMA) Forecast(window []float64) (float64, error) {
	p, d, q := a.Order.P, a.Order.D, a.Order.Q

	// levels[k] is the k-th difference of the window.
	levels := make([][]float64, d+1)
	levels[0] = window
	for k := 1; k <= d; k++ {
		levels[k] = difference(levels[k-1])
	}
	y := levels[d]

	mu, sd := stat.MeanStdDev(y, nil)
	if !(sd > 0) {
		return 0, fmt.Errorf("%w: zero variance after %d difference(s)", ErrDegenerateWindow, d)
	}

	z := make([]float64, len(y))
	for i, v := range y {
		z[i] = v - mu
	}

	next := 0.0
	if p+q > 0 {
		params, err := a.fit(z)
		if err != nil {
			return 0, err
		}
		phi, theta := params[:p], params[p:]
		e := cssResiduals(z, phi, theta)
		next = predictNext(z, e, phi, theta)
	}

	f := mu + next
	for k := d - 1; k >= 0; k-- {
		lv := levels[k]
		f += lv[len(lv)-1]
	}
	if !isFinite(f) {
		return 0, ErrNonFinite
	}
	return f, nil
}

// fit minimizes the conditional sum of squares over (phi, theta).
func (a *ARIMA) fit(z []float64) ([]float64, error) {
	p, q := a.Order.P, a.Order.Q

	var ss float64
	for _, v := range z {
		ss += v * v
	}
	// Large but finite so the simplex can still order vertices.
	penalty := 1e12 * (1 + ss)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			phi, theta := x[:p], x[p:]
			if !stationary(phi) || !invertible(theta) {
				return penalty
			}
			e := cssResiduals(z, phi, theta)
			var sse float64
			for _, v := range e[p:] {
				sse += v * v
			}
			if !isFinite(sse) {
				return penalty
			}
			return sse
		},
	}

	settings := &optimize.Settings{
		MajorIterations: a.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, make([]float64, p+q), settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	if result.Status.Early() {
		return nil, fmt.Errorf("%w: %s", ErrNotConverged, result.Status)
	}
	x := result.X
	if !stationary(x[:p]) || !invertible(x[p:]) {
		return nil, fmt.Errorf("%w: fitted parameters outside stationary/invertible region", ErrNotConverged)
	}
	return x, nil
}

// cssResiduals runs the ARMA recursion on the demeaned series z, treating
// pre-sample values and errors as zero. The first p entries are left zero.
func cssResiduals(z, phi, theta []float64) []float64 {
	p := len(phi)
	e := make([]float64, len(z))
	for t := p; t < len(z); t++ {
		pred := 0.0
		for i, c := range phi {
			pred += c * z[t-1-i]
		}
		for j, c := range theta {
			if k := t - 1 - j; k >= 0 {
				pred += c * e[k]
			}
		}
		e[t] = z[t] - pred
	}
	return e
}

func predictNext(z, e, phi, theta []float64) float64 {
	n := len(z)
	next := 0.0
	for i, c := range phi {
		if k := n - 1 - i; k >= 0 {
			next += c * z[k]
		}
	}
	for j, c := range theta {
		if k := n - 1 - j; k >= 0 {
			next += c * e[k]
		}
	}
	return next
}

func difference(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// stationary reports whether 1 - phi_1 B - ... - phi_p B^p has all roots
// outside the unit circle.
func stationary(phi []float64) bool {
	return companionStable(phi)
}

// invertible reports whether 1 + theta_1 B + ... + theta_q B^q has all
// roots outside the unit circle.
func invertible(theta []float64) bool {
	neg := make([]float64, len(theta))
	for i, c := range theta {
		neg[i] = -c
	}
	return companionStable(neg)
}

// companionStable checks that the companion matrix with first row coef has
// every eigenvalue strictly inside the unit circle.
func companionStable(coef []float64) bool {
	n := len(coef)
	if n == 0 {
		return true
	}
	for _, c := range coef {
		if !isFinite(c) {
			return false
		}
	}
	if n == 1 {
		return math.Abs(coef[0]) < 1
	}

	c := mat.NewDense(n, n, nil)
	for j, v := range coef {
		c.Set(0, j, v)
	}
	for i := 1; i < n; i++ {
		c.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(c, mat.EigenNone); !ok {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 1 {
			return false
		}
	}
	return true
}
