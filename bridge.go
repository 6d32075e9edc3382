package ideal

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/cmplxs"
)

// Bridge converts between an absolute estimate x_hat and an increment
// d_x around a fixed reference x_ref, so that an L1 penalty on x_ref + d_x
// can be expressed on the increment the inner solver works with.
//
// With per-channel weights w:
//
//	ToIncrement(x_hat) = x_hat/w - x_ref
//	ToAbsolute(d_x)    = (d_x + x_ref) * w
type Bridge struct {
	ref *Array
	w   []float64
}

// NewBridge returns an unweighted bridge around a copy of ref.
func NewBridge(ref *Array) (*Bridge, error) {
	if err := ref.check(); err != nil {
		return nil, err
	}
	return &Bridge{ref: ref.Clone()}, nil
}

// NewWeightedBridge returns a bridge with one positive weight per channel.
// A nil w means unit weights.
func NewWeightedBridge(ref *Array, w []float64) (*Bridge, error) {
	b, err := NewBridge(ref)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return b, nil
	}
	if len(w) != ref.Depth {
		return nil, shapef("bridge: %d weights for %d channels", len(w), ref.Depth)
	}
	for c, v := range w {
		if !(v > 0) {
			return nil, fmt.Errorf("%w: weight of channel %d is %g, must be positive", ErrConfig, c, v)
		}
	}
	b.w = slices.Clone(w)
	return b, nil
}

// Reference returns a copy of x_ref.
func (b *Bridge) Reference() *Array { return b.ref.Clone() }

// Weights returns the per-channel weights, all ones when unweighted.
func (b *Bridge) Weights() []float64 {
	if b.w == nil {
		w := make([]float64, b.ref.Depth)
		for c := range w {
			w[c] = 1
		}
		return w
	}
	return slices.Clone(b.w)
}

func (b *Bridge) checkDims(a *Array, what string) error {
	if err := a.check(); err != nil {
		return err
	}
	if !slices.Equal(a.Shape, b.ref.Shape) || a.Depth != b.ref.Depth {
		return shapef("%s: dims %v, reference dims %v", what, a.Dims(), b.ref.Dims())
	}
	return nil
}

// ToIncrement maps an absolute estimate to an increment. xHat is not
// modified.
func (b *Bridge) ToIncrement(xHat *Array) (*Array, error) {
	if err := b.checkDims(xHat, "to increment"); err != nil {
		return nil, err
	}
	d := xHat.Clone()
	if b.w != nil {
		nc := d.Depth
		for v := range d.Voxels() {
			for c, w := range b.w {
				d.Data[v*nc+c] /= complex(w, 0)
			}
		}
	}
	cmplxs.Sub(d.Data, b.ref.Data)
	return d, nil
}

// ToAbsolute maps an increment back to an absolute estimate. dx is not
// modified.
func (b *Bridge) ToAbsolute(dx *Array) (*Array, error) {
	if err := b.checkDims(dx, "to absolute"); err != nil {
		return nil, err
	}
	x := dx.Clone()
	cmplxs.Add(x.Data, b.ref.Data)
	if b.w != nil {
		nc := x.Depth
		for v := range x.Voxels() {
			for c, w := range b.w {
				x.Data[v*nc+c] *= complex(w, 0)
			}
		}
	}
	return x, nil
}
