package seastate

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors for the seastate package.
var (
	// ErrInsufficientStations is returned when a neighbor query asks for more
	// stations than the index holds.
	ErrInsufficientStations = errors.New("insufficient stations for neighbor query")

	// ErrMalformedGroup is returned when a timestamp group violates the
	// one-observation-per-station rule.
	ErrMalformedGroup = errors.New("malformed timestamp group")

	// ErrDegenerateInput is returned when an interpolator is fitted on
	// geometry it cannot support (too few points, collinear points).
	ErrDegenerateInput = errors.New("degenerate interpolation input")

	// ErrSingularSystem is returned when an RBF kernel system cannot be
	// solved, typically because of coincident stations.
	ErrSingularSystem = errors.New("singular kernel system")

	// ErrOutOfHull is returned when a barycentric prediction is requested
	// outside the convex hull of the fitted stations.
	ErrOutOfHull = errors.New("query outside convex hull")

	// ErrInvalidSplitSpec is returned for malformed split specifications.
	ErrInvalidSplitSpec = errors.New("invalid split specification")

	// ErrDuplicateKey is returned when a table would contain two observations
	// with the same (station, timestamp) key.
	ErrDuplicateKey = errors.New("duplicate observation key")

	// ErrDatasetNotFound is returned when a catalog entry does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrCatalogClosed is returned when operations are attempted on a closed
	// catalog backend.
	ErrCatalogClosed = errors.New("catalog is closed")
)

// InterpErrorType categorizes interpolation errors.
type InterpErrorType int

const (
	// InterpErrorTypeUnknown is an unclassified interpolation error.
	InterpErrorTypeUnknown InterpErrorType = iota
	// InterpErrorTypeDegenerate indicates unusable fit geometry.
	InterpErrorTypeDegenerate
	// InterpErrorTypeSingular indicates an unsolvable kernel system.
	InterpErrorTypeSingular
	// InterpErrorTypeOutOfHull indicates a query outside the fitted hull.
	InterpErrorTypeOutOfHull
)

// InterpError provides detailed information about fit and predict failures.
type InterpError struct {
	Type    InterpErrorType
	Message string
	// Index is the offending point's position in the Fit or Predict input,
	// or -1 when the failure is not tied to a single point.
	Index int
	Cause error
}

func (e *InterpError) Error() string {
	if e.Index >= 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s [point %d]: %v", e.Message, e.Index, e.Cause)
		}
		return fmt.Sprintf("%s [point %d]", e.Message, e.Index)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InterpError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for InterpError.
func (e *InterpError) Is(target error) bool {
	switch e.Type {
	case InterpErrorTypeDegenerate:
		return target == ErrDegenerateInput
	case InterpErrorTypeSingular:
		return target == ErrSingularSystem
	case InterpErrorTypeOutOfHull:
		return target == ErrOutOfHull
	}
	return false
}

// newInterpError creates a new InterpError.
func newInterpError(errType InterpErrorType, message string, index int, cause error) *InterpError {
	return &InterpError{
		Type:    errType,
		Message: message,
		Index:   index,
		Cause:   cause,
	}
}

// GroupErrorType categorizes per-timestamp group errors.
type GroupErrorType int

const (
	// GroupErrorTypeUnknown is an unclassified group error.
	GroupErrorTypeUnknown GroupErrorType = iota
	// GroupErrorTypeMalformed indicates duplicate stations within the group.
	GroupErrorTypeMalformed
	// GroupErrorTypeInsufficient indicates too few stations in the group.
	GroupErrorTypeInsufficient
)

// GroupError attaches a failure to the timestamp group that produced it.
// Batch operations report one GroupError per failed group so callers can
// tell failed keys from succeeded ones.
type GroupError struct {
	Type      GroupErrorType
	Timestamp time.Time
	Message   string
	Cause     error
}

func (e *GroupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Timestamp.UTC().Format(time.RFC3339), e.Cause)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Timestamp.UTC().Format(time.RFC3339))
}

func (e *GroupError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for GroupError.
func (e *GroupError) Is(target error) bool {
	switch e.Type {
	case GroupErrorTypeMalformed:
		return target == ErrMalformedGroup
	case GroupErrorTypeInsufficient:
		return target == ErrInsufficientStations
	}
	return false
}

// newGroupError creates a new GroupError.
func newGroupError(errType GroupErrorType, ts time.Time, message string, cause error) *GroupError {
	return &GroupError{
		Type:      errType,
		Timestamp: ts,
		Message:   message,
		Cause:     cause,
	}
}

// SplitSpecError reports which field of a split specification is invalid.
type SplitSpecError struct {
	Field   string
	Message string
}

func (e *SplitSpecError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid split spec: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid split spec: %s", e.Message)
}

// Is implements error matching for SplitSpecError.
func (e *SplitSpecError) Is(target error) bool {
	return target == ErrInvalidSplitSpec
}

// newSplitSpecError creates a new SplitSpecError.
func newSplitSpecError(field, message string) *SplitSpecError {
	return &SplitSpecError{Field: field, Message: message}
}

// CatalogErrorType categorizes catalog errors.
type CatalogErrorType int

const (
	// CatalogErrorTypeUnknown is an unclassified catalog error.
	CatalogErrorTypeUnknown CatalogErrorType = iota
	// CatalogErrorTypeRead indicates a read failure.
	CatalogErrorTypeRead
	// CatalogErrorTypeWrite indicates a write failure.
	CatalogErrorTypeWrite
	// CatalogErrorTypeNotFound indicates a missing dataset.
	CatalogErrorTypeNotFound
	// CatalogErrorTypeDecode indicates a dataset that cannot be decoded.
	CatalogErrorTypeDecode
)

// CatalogError provides detailed information about catalog failures.
type CatalogError struct {
	Type    CatalogErrorType
	Message string
	Key     string
	Cause   error
}

func (e *CatalogError) Error() string {
	if e.Key != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s [%s]: %v", e.Message, e.Key, e.Cause)
		}
		return fmt.Sprintf("%s [%s]", e.Message, e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CatalogError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for CatalogError.
func (e *CatalogError) Is(target error) bool {
	return e.Type == CatalogErrorTypeNotFound && target == ErrDatasetNotFound
}

// newCatalogError creates a new CatalogError.
func newCatalogError(errType CatalogErrorType, message, key string, cause error) *CatalogError {
	return &CatalogError{
		Type:    errType,
		Message: message,
		Key:     key,
		Cause:   cause,
	}
}
