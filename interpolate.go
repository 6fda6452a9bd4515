package seastate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// InterpolationMethod selects the interpolation variant.
type InterpolationMethod int

const (
	// MethodIDW is inverse-distance weighting.
	MethodIDW InterpolationMethod = iota
	// MethodRBF is radial-basis-function interpolation.
	MethodRBF
	// MethodBarycentric is Delaunay-based piecewise-linear interpolation.
	MethodBarycentric
)

func (m InterpolationMethod) String() string {
	switch m {
	case MethodIDW:
		return "idw"
	case MethodRBF:
		return "rbf"
	case MethodBarycentric:
		return "barycentric"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// RBFKernel selects the radial basis function.
type RBFKernel int

const (
	// KernelGaussian is exp(-(eps*r)^2).
	KernelGaussian RBFKernel = iota
	// KernelMultiquadric is sqrt(1 + (eps*r)^2).
	KernelMultiquadric
	// KernelInverseMultiquadric is 1 / sqrt(1 + (eps*r)^2).
	KernelInverseMultiquadric
	// KernelThinPlate is r^2 * ln(r). The shape parameter is not used.
	KernelThinPlate
)

func (k RBFKernel) String() string {
	switch k {
	case KernelGaussian:
		return "gaussian"
	case KernelMultiquadric:
		return "multiquadric"
	case KernelInverseMultiquadric:
		return "inverse_multiquadric"
	case KernelThinPlate:
		return "thin_plate"
	default:
		return fmt.Sprintf("kernel(%d)", int(k))
	}
}

// PlanePoint is a position in the interpolation plane.
type PlanePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InterpolatorConfig configures an interpolator. The Method field selects the
// variant; the remaining fields are per-variant hyperparameters.
type InterpolatorConfig struct {
	// Method selects the interpolation variant.
	Method InterpolationMethod

	// Power is the IDW distance exponent. Weights fall off as 1/d^Power.
	Power float64

	// MaxNeighbors restricts each IDW query to its nearest n fitted points.
	// Zero uses all fitted points.
	MaxNeighbors int

	// Kernel is the RBF basis function.
	Kernel RBFKernel

	// Epsilon is the RBF shape parameter.
	Epsilon float64

	// Smoothing is added to the RBF kernel diagonal. Zero fits an exact
	// interpolant; positive values trade exactness for stability.
	Smoothing float64
}

// DefaultInterpolatorConfig returns an IDW configuration with quadratic
// distance decay.
func DefaultInterpolatorConfig() InterpolatorConfig {
	return InterpolatorConfig{
		Method:  MethodIDW,
		Power:   2,
		Kernel:  KernelGaussian,
		Epsilon: 1,
	}
}

// Interpolator fits field models over scattered station samples. It is
// stateless: Fit reads the inputs, builds a model, and retains nothing.
type Interpolator struct {
	config InterpolatorConfig
}

// NewInterpolator creates an interpolator, sanitizing out-of-range
// hyperparameters back to their defaults.
func NewInterpolator(config InterpolatorConfig) *Interpolator {
	if config.Power <= 0 {
		config.Power = 2
	}
	if config.Epsilon <= 0 {
		config.Epsilon = 1
	}
	if config.MaxNeighbors < 0 {
		config.MaxNeighbors = 0
	}
	if config.Smoothing < 0 {
		config.Smoothing = 0
	}
	return &Interpolator{config: config}
}

// Config returns the interpolator's configuration.
func (ip *Interpolator) Config() InterpolatorConfig {
	return ip.config
}

// Fit builds a field model from one sample per station position. The inputs
// are copied; later mutation by the caller does not affect the model.
//
// Failure modes by variant: IDW needs at least 1 point and RBF at least 2,
// otherwise ErrDegenerateInput. RBF fails with ErrSingularSystem on
// coincident points or an unsolvable kernel system. Barycentric needs at
// least 3 distinct non-collinear points, otherwise ErrDegenerateInput.
func (ip *Interpolator) Fit(coords []PlanePoint, values []float64) (*FieldModel, error) {
	if len(coords) != len(values) {
		return nil, fmt.Errorf("coordinate/value length mismatch: %d vs %d", len(coords), len(values))
	}
	if i, ok := firstNonFinitePoint(coords); ok {
		return nil, newInterpError(InterpErrorTypeDegenerate, "non-finite fit coordinate", i, nil)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, newInterpError(InterpErrorTypeDegenerate, "non-finite fit value", i, nil)
		}
	}

	model := &FieldModel{
		method: ip.config.Method,
		config: ip.config,
		coords: append([]PlanePoint(nil), coords...),
		values: append([]float64(nil), values...),
	}

	switch ip.config.Method {
	case MethodIDW:
		if len(coords) < 1 {
			return nil, newInterpError(InterpErrorTypeDegenerate, "idw requires at least 1 point", -1, nil)
		}
	case MethodRBF:
		if len(coords) < 2 {
			return nil, newInterpError(InterpErrorTypeDegenerate, "rbf requires at least 2 points", -1, nil)
		}
		coeffs, err := solveRBF(model.coords, model.values, ip.config)
		if err != nil {
			return nil, err
		}
		model.coeffs = coeffs
	case MethodBarycentric:
		tri, err := fitTriangulation(model.coords)
		if err != nil {
			return nil, err
		}
		model.tri = tri
	default:
		return nil, fmt.Errorf("unknown interpolation method %d", int(ip.config.Method))
	}

	return model, nil
}

// FieldModel is a fitted interpolation field. It is immutable and safe for
// concurrent Predict calls.
type FieldModel struct {
	method InterpolationMethod
	config InterpolatorConfig
	coords []PlanePoint
	values []float64
	coeffs []float64      // RBF expansion coefficients
	tri    *triangulation // barycentric triangulation
}

// Method returns the variant this model was fitted with.
func (m *FieldModel) Method() InterpolationMethod {
	return m.method
}

// Len returns the number of fitted sample points.
func (m *FieldModel) Len() int {
	return len(m.coords)
}

// Predict evaluates the field at each query point. The output is positional:
// result[i] corresponds to queries[i]. Barycentric models fail with
// ErrOutOfHull when a query falls outside the fitted convex hull; the error
// identifies the offending query index.
func (m *FieldModel) Predict(queries []PlanePoint) ([]float64, error) {
	if i, ok := firstNonFinitePoint(queries); ok {
		return nil, newInterpError(InterpErrorTypeDegenerate, "non-finite query coordinate", i, nil)
	}

	out := make([]float64, len(queries))
	switch m.method {
	case MethodIDW:
		for i, q := range queries {
			out[i] = m.predictIDW(q)
		}
	case MethodRBF:
		for i, q := range queries {
			out[i] = m.predictRBF(q)
		}
	case MethodBarycentric:
		for i, q := range queries {
			v, err := m.tri.interpolate(q, m.values)
			if err != nil {
				return nil, newInterpError(InterpErrorTypeOutOfHull, "barycentric prediction failed", i, err)
			}
			out[i] = v
		}
	default:
		return nil, fmt.Errorf("unknown interpolation method %d", int(m.method))
	}
	return out, nil
}

// ========== Inverse-Distance Weighting ==========

// predictIDW evaluates the IDW field at one query point. A query coinciding
// exactly with a fitted point returns that point's value.
func (m *FieldModel) predictIDW(q PlanePoint) float64 {
	for i, c := range m.coords {
		if c == q {
			return m.values[i]
		}
	}

	idxs := m.idwNeighborhood(q)

	totalWeight := 0.0
	weightedSum := 0.0
	for _, i := range idxs {
		d := planeDistance(q, m.coords[i])
		w := 1.0 / math.Pow(d, m.config.Power)
		totalWeight += w
		weightedSum += w * m.values[i]
	}
	return weightedSum / totalWeight
}

// idwNeighborhood returns the fitted-point indices contributing to a query:
// all points, or the MaxNeighbors nearest with ties broken by fit order.
func (m *FieldModel) idwNeighborhood(q PlanePoint) []int {
	n := len(m.coords)
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	if m.config.MaxNeighbors == 0 || m.config.MaxNeighbors >= n {
		return idxs
	}

	dists := make([]float64, n)
	for i, c := range m.coords {
		dists[i] = planeDistance(q, c)
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return dists[idxs[a]] < dists[idxs[b]]
	})
	return idxs[:m.config.MaxNeighbors]
}

// ========== Radial Basis Functions ==========

// solveRBF computes expansion coefficients for the kernel system
// (K + smoothing*I) c = v. The symmetric system is solved by Cholesky when
// positive definite, falling back to QR for the indefinite kernels.
func solveRBF(coords []PlanePoint, values []float64, config InterpolatorConfig) ([]float64, error) {
	n := len(coords)

	seen := make(map[PlanePoint]int, n)
	for i, c := range coords {
		if j, dup := seen[c]; dup {
			return nil, newInterpError(InterpErrorTypeSingular,
				fmt.Sprintf("coincident points %d and %d", j, i), i, nil)
		}
		seen[c] = i
	}

	kernel := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := kernelValue(config.Kernel, config.Epsilon, planeDistance(coords[i], coords[j]))
			if i == j {
				v += config.Smoothing
			}
			kernel.SetSym(i, j, v)
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), values...))

	coeffs := make([]float64, n)
	solved := false

	var chol mat.Cholesky
	if chol.Factorize(kernel) {
		x := mat.NewVecDense(n, nil)
		if err := chol.SolveVecTo(x, b); err == nil {
			copy(coeffs, x.RawVector().Data)
			solved = true
		}
	}

	if !solved {
		dense := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				dense.Set(i, j, kernel.At(i, j))
			}
		}
		var qr mat.QR
		qr.Factorize(dense)
		x := mat.NewDense(n, 1, nil)
		if err := qr.SolveTo(x, false, b); err != nil {
			return nil, newInterpError(InterpErrorTypeSingular, "kernel system is not solvable", -1, err)
		}
		for i := 0; i < n; i++ {
			coeffs[i] = x.At(i, 0)
		}
	}

	for i, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, newInterpError(InterpErrorTypeSingular, "kernel solve produced non-finite coefficient", i, nil)
		}
	}
	return coeffs, nil
}

// predictRBF evaluates the RBF expansion at one query point.
func (m *FieldModel) predictRBF(q PlanePoint) float64 {
	sum := 0.0
	for i, c := range m.coords {
		sum += m.coeffs[i] * kernelValue(m.config.Kernel, m.config.Epsilon, planeDistance(q, c))
	}
	return sum
}

// kernelValue evaluates the radial basis function at distance r.
func kernelValue(kernel RBFKernel, epsilon, r float64) float64 {
	switch kernel {
	case KernelGaussian:
		er := epsilon * r
		return math.Exp(-er * er)
	case KernelMultiquadric:
		er := epsilon * r
		return math.Sqrt(1 + er*er)
	case KernelInverseMultiquadric:
		er := epsilon * r
		return 1 / math.Sqrt(1+er*er)
	case KernelThinPlate:
		if r == 0 {
			return 0
		}
		return r * r * math.Log(r)
	default:
		return 0
	}
}

// ========== Helpers ==========

// planeDistance is the Euclidean distance between two plane points.
func planeDistance(p, q PlanePoint) float64 {
	return PlanarDistance(p.X, p.Y, q.X, q.Y)
}

// firstNonFinitePoint returns the index of the first NaN or infinite
// coordinate, if any.
func firstNonFinitePoint(points []PlanePoint) (int, bool) {
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return i, true
		}
	}
	return -1, false
}
