package seastate

import (
	"fmt"

	"github.com/fogleman/delaunay"
)

// barycentricTol absorbs floating-point noise when testing triangle
// membership. Weights above -barycentricTol count as inside.
const barycentricTol = 1e-12

// triangulation is the fitted state of a barycentric field model: the
// Delaunay triangulation of the sample positions.
type triangulation struct {
	points    []delaunay.Point
	triangles []int
	hull      []delaunay.Point
}

// fitTriangulation triangulates the sample positions. Fewer than 3 points,
// coincident points, or collinear geometry fail with ErrDegenerateInput.
func fitTriangulation(coords []PlanePoint) (*triangulation, error) {
	if len(coords) < 3 {
		return nil, newInterpError(InterpErrorTypeDegenerate,
			fmt.Sprintf("barycentric requires at least 3 points, got %d", len(coords)), -1, nil)
	}

	seen := make(map[PlanePoint]int, len(coords))
	for i, c := range coords {
		if j, dup := seen[c]; dup {
			return nil, newInterpError(InterpErrorTypeDegenerate,
				fmt.Sprintf("coincident points %d and %d", j, i), i, nil)
		}
		seen[c] = i
	}

	if collinear(coords) {
		return nil, newInterpError(InterpErrorTypeDegenerate, "points are collinear", -1, nil)
	}

	points := make([]delaunay.Point, len(coords))
	for i, c := range coords {
		points[i] = delaunay.Point{X: c.X, Y: c.Y}
	}
	tri, err := delaunay.Triangulate(points)
	if err != nil {
		return nil, newInterpError(InterpErrorTypeDegenerate, "triangulation failed", -1, err)
	}
	if len(tri.Triangles) == 0 {
		return nil, newInterpError(InterpErrorTypeDegenerate, "triangulation produced no triangles", -1, nil)
	}

	return &triangulation{
		points:    tri.Points,
		triangles: tri.Triangles,
		hull:      tri.ConvexHull,
	}, nil
}

// interpolate evaluates the piecewise-linear field at q. The containing
// triangle's vertex values are combined with barycentric weights, which lie
// in [0, 1] and sum to 1. Queries outside the hull fail with ErrOutOfHull.
func (t *triangulation) interpolate(q PlanePoint, values []float64) (float64, error) {
	for ti := 0; ti+2 < len(t.triangles); ti += 3 {
		i, j, k := t.triangles[ti], t.triangles[ti+1], t.triangles[ti+2]
		w1, w2, w3, ok := barycentricWeights(q, t.points[i], t.points[j], t.points[k])
		if !ok {
			continue
		}
		return w1*values[i] + w2*values[j] + w3*values[k], nil
	}
	return 0, fmt.Errorf("%w: point (%g, %g)", ErrOutOfHull, q.X, q.Y)
}

// barycentricWeights computes q's barycentric coordinates in triangle abc.
// ok reports containment. Returned weights are clamped to [0, 1] and
// renormalized so they sum to exactly 1.
func barycentricWeights(q PlanePoint, a, b, c delaunay.Point) (w1, w2, w3 float64, ok bool) {
	det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if det == 0 {
		return 0, 0, 0, false
	}
	w1 = ((b.Y-c.Y)*(q.X-c.X) + (c.X-b.X)*(q.Y-c.Y)) / det
	w2 = ((c.Y-a.Y)*(q.X-c.X) + (a.X-c.X)*(q.Y-c.Y)) / det
	w3 = 1 - w1 - w2
	if w1 < -barycentricTol || w2 < -barycentricTol || w3 < -barycentricTol {
		return 0, 0, 0, false
	}

	w1 = clampUnit(w1)
	w2 = clampUnit(w2)
	w3 = clampUnit(w3)
	sum := w1 + w2 + w3
	return w1 / sum, w2 / sum, w3 / sum, true
}

func clampUnit(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// collinear reports whether all points lie exactly on one line.
func collinear(coords []PlanePoint) bool {
	if len(coords) < 3 {
		return true
	}
	a := coords[0]
	var b PlanePoint
	found := false
	for _, c := range coords[1:] {
		if c != a {
			b = c
			found = true
			break
		}
	}
	if !found {
		return true
	}
	for _, c := range coords {
		cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
		if cross != 0 {
			return false
		}
	}
	return true
}

// ConvexHull returns the hull of a barycentric model's fitted points in
// traversal order, or nil for other variants.
func (m *FieldModel) ConvexHull() []PlanePoint {
	if m.tri == nil {
		return nil
	}
	out := make([]PlanePoint, len(m.tri.hull))
	for i, p := range m.tri.hull {
		out[i] = PlanePoint{X: p.X, Y: p.Y}
	}
	return out
}

// PredictWithNearestFallback evaluates the model at each query, substituting
// the nearest fitted point's value for queries a barycentric model places
// outside its hull. It is an explicit policy layer; Predict itself never
// extrapolates. Models of other variants behave exactly as Predict.
func PredictWithNearestFallback(model *FieldModel, queries []PlanePoint) ([]float64, error) {
	if model.method != MethodBarycentric {
		return model.Predict(queries)
	}
	if i, ok := firstNonFinitePoint(queries); ok {
		return nil, newInterpError(InterpErrorTypeDegenerate, "non-finite query coordinate", i, nil)
	}

	out := make([]float64, len(queries))
	for i, q := range queries {
		v, err := model.tri.interpolate(q, model.values)
		if err != nil {
			v = model.nearestValue(q)
		}
		out[i] = v
	}
	return out, nil
}

// nearestValue returns the value of the fitted point closest to q, ties
// broken by fit order.
func (m *FieldModel) nearestValue(q PlanePoint) float64 {
	best := 0
	bestDist := planeDistance(q, m.coords[0])
	for i := 1; i < len(m.coords); i++ {
		if d := planeDistance(q, m.coords[i]); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return m.values[best]
}
