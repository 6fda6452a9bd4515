package seastate

import (
	"errors"
	"math"
	"testing"

	"github.com/fogleman/delaunay"
)

func barycentricInterpolator() *Interpolator {
	return NewInterpolator(InterpolatorConfig{Method: MethodBarycentric})
}

func TestBarycentricExactAtVertices(t *testing.T) {
	coords := []PlanePoint{{0, 0}, {1, 0}, {0, 1}}
	values := []float64{10, 20, 30}

	model, err := barycentricInterpolator().Fit(coords, values)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	got, err := model.Predict(coords)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	for i, v := range values {
		if math.Abs(got[i]-v) > 1e-9 {
			t.Errorf("vertex %d: expected %v, got %v", i, v, got[i])
		}
	}
}

func TestBarycentricReproducesLinearField(t *testing.T) {
	// A piecewise-linear interpolant reproduces any affine field exactly.
	f := func(p PlanePoint) float64 { return 2*p.X + 3*p.Y + 1 }

	coords := []PlanePoint{{0, 0}, {4, 0}, {0, 4}, {4, 4}, {2, 1}}
	values := make([]float64, len(coords))
	for i, c := range coords {
		values[i] = f(c)
	}

	model, err := barycentricInterpolator().Fit(coords, values)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	queries := []PlanePoint{{1, 1}, {2, 2}, {3, 0.5}, {0.1, 3.8}, {2, 1}}
	got, err := model.Predict(queries)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	for i, q := range queries {
		if math.Abs(got[i]-f(q)) > 1e-9 {
			t.Errorf("query %d at (%v, %v): expected %v, got %v", i, q.X, q.Y, f(q), got[i])
		}
	}
}

func TestBarycentricOutOfHull(t *testing.T) {
	model, err := barycentricInterpolator().Fit(
		[]PlanePoint{{0, 0}, {1, 0}, {0, 1}},
		[]float64{1, 2, 3},
	)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	_, err = model.Predict([]PlanePoint{{0.2, 0.2}, {5, 5}})
	if !errors.Is(err, ErrOutOfHull) {
		t.Fatalf("expected ErrOutOfHull, got %v", err)
	}
	var ie *InterpError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InterpError, got %T", err)
	}
	if ie.Index != 1 {
		t.Errorf("expected offending query index 1, got %d", ie.Index)
	}
}

func TestBarycentricDegenerateFits(t *testing.T) {
	tests := []struct {
		name   string
		coords []PlanePoint
	}{
		{"too few points", []PlanePoint{{0, 0}, {1, 0}}},
		{"coincident points", []PlanePoint{{0, 0}, {0, 0}, {1, 0}, {0, 1}}},
		{"collinear points", []PlanePoint{{0, 0}, {1, 1}, {2, 2}, {3, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]float64, len(tt.coords))
			_, err := barycentricInterpolator().Fit(tt.coords, values)
			if !errors.Is(err, ErrDegenerateInput) {
				t.Errorf("expected ErrDegenerateInput, got %v", err)
			}
		})
	}
}

func TestBarycentricWeights(t *testing.T) {
	a := delaunay.Point{X: 0, Y: 0}
	b := delaunay.Point{X: 1, Y: 0}
	c := delaunay.Point{X: 0, Y: 1}

	t.Run("interior point", func(t *testing.T) {
		w1, w2, w3, ok := barycentricWeights(PlanePoint{0.25, 0.25}, a, b, c)
		if !ok {
			t.Fatal("expected containment")
		}
		for i, w := range []float64{w1, w2, w3} {
			if w < 0 || w > 1 {
				t.Errorf("weight %d out of [0, 1]: %v", i, w)
			}
		}
		if math.Abs(w1+w2+w3-1) > 1e-9 {
			t.Errorf("weights sum to %v", w1+w2+w3)
		}
		if math.Abs(w1-0.5) > 1e-12 || math.Abs(w2-0.25) > 1e-12 || math.Abs(w3-0.25) > 1e-12 {
			t.Errorf("unexpected weights %v, %v, %v", w1, w2, w3)
		}
	})

	t.Run("vertex", func(t *testing.T) {
		w1, w2, w3, ok := barycentricWeights(PlanePoint{1, 0}, a, b, c)
		if !ok {
			t.Fatal("expected containment")
		}
		if w1 != 0 || w2 != 1 || w3 != 0 {
			t.Errorf("unexpected vertex weights %v, %v, %v", w1, w2, w3)
		}
	})

	t.Run("outside", func(t *testing.T) {
		if _, _, _, ok := barycentricWeights(PlanePoint{1, 1}, a, b, c); ok {
			t.Error("expected point outside the triangle to be rejected")
		}
	})

	t.Run("degenerate triangle", func(t *testing.T) {
		if _, _, _, ok := barycentricWeights(PlanePoint{0, 0}, a, a, a); ok {
			t.Error("expected zero-area triangle to be rejected")
		}
	})
}

func TestConvexHull(t *testing.T) {
	coords := []PlanePoint{{0, 0}, {2, 0}, {0, 2}, {2, 2}, {1, 1}}
	values := []float64{1, 2, 3, 4, 5}

	model, err := barycentricInterpolator().Fit(coords, values)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	hull := model.ConvexHull()
	if len(hull) != 4 {
		t.Errorf("expected 4 hull points, got %d", len(hull))
	}

	idwModel, err := NewInterpolator(DefaultInterpolatorConfig()).Fit(coords, values)
	if err != nil {
		t.Fatalf("idw fit failed: %v", err)
	}
	if idwModel.ConvexHull() != nil {
		t.Error("expected nil hull for non-barycentric model")
	}
}

func TestPredictWithNearestFallback(t *testing.T) {
	coords := []PlanePoint{{0, 0}, {1, 0}, {0, 1}}
	values := []float64{10, 20, 30}

	model, err := barycentricInterpolator().Fit(coords, values)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	// The second query is far outside the hull, nearest to (1, 0).
	got, err := PredictWithNearestFallback(model, []PlanePoint{{0.25, 0.25}, {9, 0}})
	if err != nil {
		t.Fatalf("fallback predict failed: %v", err)
	}
	if math.Abs(got[0]-17.5) > 1e-9 {
		t.Errorf("expected in-hull interpolation 17.5, got %v", got[0])
	}
	if got[1] != 20 {
		t.Errorf("expected nearest fitted value 20, got %v", got[1])
	}
}

func TestPredictWithNearestFallbackPassThrough(t *testing.T) {
	model, err := NewInterpolator(DefaultInterpolatorConfig()).Fit(
		[]PlanePoint{{-1, 0}, {1, 0}},
		[]float64{10, 20},
	)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	got, err := PredictWithNearestFallback(model, []PlanePoint{{0, 0}})
	if err != nil {
		t.Fatalf("fallback predict failed: %v", err)
	}
	if math.Abs(got[0]-15) > 1e-9 {
		t.Errorf("expected idw midpoint 15, got %v", got[0])
	}
}

func TestPredictWithNearestFallbackRejectsNonFinite(t *testing.T) {
	model, err := barycentricInterpolator().Fit(
		[]PlanePoint{{0, 0}, {1, 0}, {0, 1}},
		[]float64{1, 2, 3},
	)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	_, err = PredictWithNearestFallback(model, []PlanePoint{{math.NaN(), 0}})
	if !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("expected ErrDegenerateInput, got %v", err)
	}
}
