// Package tensor provides the dense float64 arrays that carry batched poses,
// tangent vectors and noise through the diffusion process.
//
// A Dense is row-major and owns its storage. Operations that change shape or
// layout return a new Dense; nothing here mutates a receiver except the
// explicit Set and Data accessors.
package tensor

import "fmt"

// Dense is a row-major float64 tensor.
type Dense struct {
	shape Shape
	data  []float64
}

// New wraps data in a tensor of the given shape.
// The slice is used directly; len(data) must equal shape.NumElements().
func New(shape Shape, data []float64) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements): %w",
			len(data), shape, shape.NumElements(), ErrShapeMismatch)
	}
	return &Dense{shape: shape.Clone(), data: data}, nil
}

// Zeros allocates a zero-filled tensor.
// It panics on an invalid shape, like make does on a negative length.
func Zeros(shape Shape) *Dense {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.Zeros: %v", err))
	}
	return &Dense{shape: shape.Clone(), data: make([]float64, shape.NumElements())}
}

// Full allocates a tensor filled with v.
func Full(shape Shape, v float64) *Dense {
	d := Zeros(shape)
	for i := range d.data {
		d.data[i] = v
	}
	return d
}

// Shape returns the tensor's shape. Callers must not modify it.
func (d *Dense) Shape() Shape {
	return d.shape
}

// Dim returns the extent of axis i.
func (d *Dense) Dim(i int) int {
	return d.shape[i]
}

// Rank returns the number of axes.
func (d *Dense) Rank() int {
	return len(d.shape)
}

// Len returns the number of elements.
func (d *Dense) Len() int {
	return len(d.data)
}

// Data returns the backing slice.
func (d *Dense) Data() []float64 {
	return d.data
}

// At returns the element at the given multi-index.
func (d *Dense) At(idx ...int) float64 {
	return d.data[d.offset(idx)]
}

// Set stores v at the given multi-index.
func (d *Dense) Set(v float64, idx ...int) {
	d.data[d.offset(idx)] = v
}

func (d *Dense) offset(idx []int) int {
	if len(idx) != len(d.shape) {
		panic(fmt.Sprintf("tensor: index rank %d for shape %v", len(idx), d.shape))
	}
	off := 0
	for i, n := range idx {
		if n < 0 || n >= d.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d of %v", n, i, d.shape))
		}
		off = off*d.shape[i] + n
	}
	return off
}

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	data := make([]float64, len(d.data))
	copy(data, d.data)
	return &Dense{shape: d.shape.Clone(), data: data}
}

// Reshape returns a copy of d with a new shape holding the same number of elements.
func (d *Dense) Reshape(shape Shape) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if shape.NumElements() != len(d.data) {
		return nil, &ShapeError{Op: "reshape", Got: d.shape.Clone(), Want: shape.Clone()}
	}
	out := d.Clone()
	out.shape = shape.Clone()
	return out, nil
}

// SwapAxes returns a copy of d with axes i and j exchanged.
func (d *Dense) SwapAxes(i, j int) (*Dense, error) {
	rank := len(d.shape)
	if i < 0 || i >= rank || j < 0 || j >= rank {
		return nil, fmt.Errorf("swap axes %d and %d of rank %d tensor: %w", i, j, rank, ErrAxisRange)
	}
	if i == j {
		return d.Clone(), nil
	}

	outShape := d.shape.Clone()
	outShape[i], outShape[j] = outShape[j], outShape[i]
	out := Zeros(outShape)

	inStrides := d.shape.ComputeStrides()
	// Stride in the source for each output axis.
	src := make([]int, rank)
	copy(src, inStrides)
	src[i], src[j] = src[j], src[i]

	idx := make([]int, rank)
	for k := range out.data {
		off := 0
		for a := range idx {
			off += idx[a] * src[a]
		}
		out.data[k] = d.data[off]

		for a := rank - 1; a >= 0; a-- {
			idx[a]++
			if idx[a] < outShape[a] {
				break
			}
			idx[a] = 0
		}
	}
	return out, nil
}

// Slice returns batch element b as a tensor with a leading axis of 1.
func (d *Dense) Slice(b int) *Dense {
	if len(d.shape) == 0 || b < 0 || b >= d.shape[0] {
		panic(fmt.Sprintf("tensor: batch index %d out of range for %v", b, d.shape))
	}
	stride := len(d.data) / d.shape[0]
	shape := d.shape.Clone()
	shape[0] = 1
	data := make([]float64, stride)
	copy(data, d.data[b*stride:(b+1)*stride])
	return &Dense{shape: shape, data: data}
}

// Concat joins tensors along axis 0. All trailing dimensions must agree.
func Concat(ts ...*Dense) (*Dense, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat: no tensors: %w", ErrNilTensor)
	}
	first := ts[0]
	if first == nil || len(first.shape) == 0 {
		return nil, fmt.Errorf("concat: first tensor: %w", ErrNilTensor)
	}
	shape := first.shape.Clone()
	shape[0] = 0
	size := 0
	for _, t := range ts {
		if t == nil {
			return nil, fmt.Errorf("concat: %w", ErrNilTensor)
		}
		if len(t.shape) != len(first.shape) || !t.shape[1:].Equal(first.shape[1:]) {
			return nil, &ShapeError{Op: "concat", Got: t.shape.Clone(), Want: first.shape.Clone()}
		}
		shape[0] += t.shape[0]
		size += len(t.data)
	}
	data := make([]float64, 0, size)
	for _, t := range ts {
		data = append(data, t.data...)
	}
	return &Dense{shape: shape, data: data}, nil
}

// Sub returns d - other. Shapes must be equal.
func (d *Dense) Sub(other *Dense) (*Dense, error) {
	if !d.shape.Equal(other.shape) {
		return nil, &ShapeError{Op: "sub", Got: other.shape.Clone(), Want: d.shape.Clone()}
	}
	out := Zeros(d.shape)
	for i, v := range d.data {
		out.data[i] = v - other.data[i]
	}
	return out, nil
}

// Scale returns f * d.
func (d *Dense) Scale(f float64) *Dense {
	out := Zeros(d.shape)
	for i, v := range d.data {
		out.data[i] = f * v
	}
	return out
}

// Clamp returns d with every element limited to [lo, hi].
func (d *Dense) Clamp(lo, hi float64) *Dense {
	out := Zeros(d.shape)
	for i, v := range d.data {
		out.data[i] = min(max(v, lo), hi)
	}
	return out
}
