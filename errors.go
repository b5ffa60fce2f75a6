package dpmm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyData is returned when Fit is called without data points.
	ErrEmptyData = errors.New("no data points")

	// ErrInvalidOptions is returned when model or fit options fail validation.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrNoClusters is returned when every data cluster has emptied out,
	// which can only happen when all points were absorbed by the outlier
	// component.
	ErrNoClusters = errors.New("no data clusters left")

	// ErrCheckpointMismatch is returned when a checkpoint does not fit the
	// data or options it is resumed with.
	ErrCheckpointMismatch = errors.New("checkpoint does not match model")
)

// ErrDimensionMismatch indicates that the data dimension differs from the
// model dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }
