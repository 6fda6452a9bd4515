package seastate

import (
	"errors"
	"testing"
	"time"
)

func TestInterpError(t *testing.T) {
	cause := errors.New("zero area")

	// Test degenerate error with point index and cause
	err := newInterpError(InterpErrorTypeDegenerate, "collinear stations", 2, cause)
	if err.Type != InterpErrorTypeDegenerate {
		t.Errorf("expected degenerate type, got %v", err.Type)
	}
	if err.Index != 2 {
		t.Errorf("expected index 2, got %d", err.Index)
	}
	if !errors.Is(err, ErrDegenerateInput) {
		t.Error("expected error to match ErrDegenerateInput")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to unwrap to cause")
	}
	if err.Error() != "collinear stations [point 2]: zero area" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	// Test singular error
	singErr := newInterpError(InterpErrorTypeSingular, "kernel system is not solvable", -1, nil)
	if !errors.Is(singErr, ErrSingularSystem) {
		t.Error("expected error to match ErrSingularSystem")
	}
	if singErr.Error() != "kernel system is not solvable" {
		t.Errorf("unexpected message: %s", singErr.Error())
	}

	// Test out-of-hull error
	hullErr := newInterpError(InterpErrorTypeOutOfHull, "barycentric prediction failed", 0, ErrOutOfHull)
	if !errors.Is(hullErr, ErrOutOfHull) {
		t.Error("expected error to match ErrOutOfHull")
	}

	// Test unknown type doesn't match specific errors
	unknownErr := newInterpError(InterpErrorTypeUnknown, "unknown", -1, nil)
	if errors.Is(unknownErr, ErrDegenerateInput) {
		t.Error("unknown error should not match degenerate")
	}
	if errors.Is(unknownErr, ErrSingularSystem) {
		t.Error("unknown error should not match singular")
	}
}

func TestGroupError(t *testing.T) {
	ts := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	cause := errors.New("duplicate station \"b1\"")

	// Test malformed group error
	err := newGroupError(GroupErrorTypeMalformed, ts, "group has duplicate stations", cause)
	if err.Type != GroupErrorTypeMalformed {
		t.Errorf("expected malformed type, got %v", err.Type)
	}
	if !err.Timestamp.Equal(ts) {
		t.Error("expected timestamp to be preserved")
	}
	if !errors.Is(err, ErrMalformedGroup) {
		t.Error("expected error to match ErrMalformedGroup")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to unwrap to cause")
	}

	// Test message format without cause
	bare := newGroupError(GroupErrorTypeMalformed, ts, "group has duplicate stations", nil)
	if bare.Error() != "group has duplicate stations [2024-03-01T06:00:00Z]" {
		t.Errorf("unexpected message: %s", bare.Error())
	}

	// Test insufficient group error
	insErr := newGroupError(GroupErrorTypeInsufficient, ts, "neighbor query failed", nil)
	if !errors.Is(insErr, ErrInsufficientStations) {
		t.Error("expected error to match ErrInsufficientStations")
	}

	// Test unknown type doesn't match specific errors
	unknownErr := newGroupError(GroupErrorTypeUnknown, ts, "geo index build failed", nil)
	if errors.Is(unknownErr, ErrMalformedGroup) {
		t.Error("unknown error should not match malformed")
	}
}

func TestSplitSpecError(t *testing.T) {
	// Test error with field
	err := newSplitSpecError("test_fraction", "must be in [0, 1)")
	if !errors.Is(err, ErrInvalidSplitSpec) {
		t.Error("expected error to match ErrInvalidSplitSpec")
	}
	if err.Error() != "invalid split spec: test_fraction: must be in [0, 1)" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	// Test error without field
	bare := newSplitSpecError("", "no holdout requested")
	if !errors.Is(bare, ErrInvalidSplitSpec) {
		t.Error("expected error to match ErrInvalidSplitSpec")
	}
	if bare.Error() != "invalid split spec: no holdout requested" {
		t.Errorf("unexpected message: %s", bare.Error())
	}
}

func TestCatalogError(t *testing.T) {
	cause := errors.New("disk full")

	// Test write error with key and cause
	err := newCatalogError(CatalogErrorTypeWrite, "save table", "tables/pacific.csv", cause)
	if err.Type != CatalogErrorTypeWrite {
		t.Errorf("expected write type, got %v", err.Type)
	}
	if err.Key != "tables/pacific.csv" {
		t.Error("expected key to be preserved")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to unwrap to cause")
	}
	if errors.Is(err, ErrDatasetNotFound) {
		t.Error("write error should not match ErrDatasetNotFound")
	}
	if err.Error() != "save table [tables/pacific.csv]: disk full" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	// Test not-found error matches sentinel through the type alone
	nfErr := newCatalogError(CatalogErrorTypeNotFound, "load table", "tables/missing.csv", nil)
	if !errors.Is(nfErr, ErrDatasetNotFound) {
		t.Error("expected error to match ErrDatasetNotFound")
	}

	// Test error message without key
	bare := newCatalogError(CatalogErrorTypeRead, "list tables", "", nil)
	if bare.Error() != "list tables" {
		t.Errorf("unexpected message: %s", bare.Error())
	}
}

func TestFitDegenerateMatchesSentinel(t *testing.T) {
	interp := NewInterpolator(InterpolatorConfig{Method: MethodIDW})

	_, err := interp.Fit(nil, nil)
	if err == nil {
		t.Fatal("expected error for empty fit input")
	}
	if !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("expected ErrDegenerateInput, got %v", err)
	}

	var interpErr *InterpError
	if !errors.As(err, &interpErr) {
		t.Fatal("expected *InterpError")
	}
	if interpErr.Index != -1 {
		t.Errorf("expected index -1 for whole-input failure, got %d", interpErr.Index)
	}
}
