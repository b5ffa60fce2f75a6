package local

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch is returned when label vectors do not match the data.
	ErrLengthMismatch = errors.New("label length mismatch")

	// ErrLabelOutOfRange is returned when a label is not a valid cluster index.
	ErrLabelOutOfRange = errors.New("label out of range")

	// ErrInvalidAuxLabel is returned when an aux label is neither 0 nor 1.
	ErrInvalidAuxLabel = errors.New("aux label must be 0 or 1")

	// ErrClusterOccupied is returned when a cluster that still holds points
	// is removed.
	ErrClusterOccupied = errors.New("cluster still holds points")

	// ErrUnsortedIndices is returned when cluster indices are not strictly
	// ascending.
	ErrUnsortedIndices = errors.New("cluster indices must be strictly ascending")
)

// LabelError reports an invalid label at a given point.
type LabelError struct {
	Point int
	Label int
	cause error
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("point %d: label %d: %v", e.Point, e.Label, e.cause)
}

func (e *LabelError) Unwrap() error { return e.cause }
