package ideal

import (
	"slices"

	"gonum.org/v1/gonum/cmplxs"
)

// Array is a complex array over a spatial grid with one trailing dimension.
// The trailing dimension holds species channels for parameter arrays and
// echoes for per-echo images.
type Array struct {
	Shape []int
	Depth int
	Data  []complex128 // Voxel-major interleaved, len = Voxels()*Depth
}

func NewArray(shape []int, depth int) *Array {
	a := &Array{Shape: slices.Clone(shape), Depth: depth}
	a.Data = make([]complex128, a.Voxels()*depth)
	return a
}

// WrapArray uses data as the backing store without copying.
func WrapArray(shape []int, depth int, data []complex128) (*Array, error) {
	a := &Array{Shape: slices.Clone(shape), Depth: depth, Data: data}
	if err := a.check(); err != nil {
		return nil, err
	}
	return a, nil
}

// Voxels returns the number of spatial grid points.
func (a *Array) Voxels() int {
	return voxelCount(a.Shape)
}

func voxelCount(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Dims returns the full dimensions, spatial shape followed by the trailing
// dimension.
func (a *Array) Dims() []int {
	return append(slices.Clone(a.Shape), a.Depth)
}

func (a *Array) At(v, k int) complex128 {
	return a.Data[v*a.Depth+k]
}

func (a *Array) Set(v, k int, c complex128) {
	a.Data[v*a.Depth+k] = c
}

func (a *Array) Clone() *Array {
	return &Array{Shape: slices.Clone(a.Shape), Depth: a.Depth, Data: slices.Clone(a.Data)}
}

func (a *Array) check() error {
	for _, s := range a.Shape {
		if s < 0 {
			return shapef("negative extent in shape %v", a.Shape)
		}
	}
	if a.Depth < 0 {
		return shapef("negative trailing dimension %d", a.Depth)
	}
	if want := a.Voxels() * a.Depth; len(a.Data) != want {
		return shapef("dims %v need %d elements, have %d", a.Dims(), want, len(a.Data))
	}
	return nil
}

// Inner is the complex inner product sum(conj(a)*b), conjugate-linear in a.
func Inner(a, b *Array) (complex128, error) {
	if !slices.Equal(a.Shape, b.Shape) || a.Depth != b.Depth {
		return 0, shapef("inner product of %v and %v", a.Dims(), b.Dims())
	}
	return cmplxs.Dot(a.Data, b.Data), nil
}

// Norm returns the L2 norm over all elements.
func Norm(a *Array) float64 {
	return cmplxs.Norm(a.Data, 2)
}
