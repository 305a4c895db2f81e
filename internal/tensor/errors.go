package tensor

import (
	"errors"
	"fmt"
)

// Any matches every extent of a dimension in Shape.Matches and Expect.
const Any = -1

// Common errors.
var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrNilTensor     = errors.New("nil tensor")
	ErrAxisRange     = errors.New("axis out of range")
)

// ShapeError reports a tensor whose shape breaks an operation's contract.
type ShapeError struct {
	Op   string // Operation that rejected the tensor
	Name string // Argument name, e.g. "trans" or "rot"
	Got  Shape
	Want Shape // May contain Any
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s has shape %v, want %v", e.Op, e.Name, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: shape %v, want %v", e.Op, e.Got, e.Want)
}

// Unwrap lets errors.Is match ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// Expect returns a *ShapeError unless d has exactly the wanted shape.
// Dimensions given as Any are not checked.
func Expect(op, name string, d *Dense, want ...int) error {
	if d == nil {
		return fmt.Errorf("%s: %s: %w", op, name, ErrNilTensor)
	}
	if !d.shape.Matches(want...) {
		return &ShapeError{Op: op, Name: name, Got: d.shape.Clone(), Want: Shape(want).Clone()}
	}
	return nil
}
