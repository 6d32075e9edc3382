package ideal

import (
	"fmt"
	"slices"
	"sync"
)

// Operator is the stateful form of Signal used by a Gauss-Newton outer loop:
// it is bound to one linearization point and works on stacked parameter
// arrays. A bound Operator never changes its linearization point; Bind
// returns a new Operator for the next iteration.
//
// The spatial shape is either set with SetShape or inferred from the first
// array passed to Model (x), Forward (dx) or Backward (dIm). It is then fixed
// for the lifetime of the Operator and of Operators derived from it by Bind.
type Operator struct {
	sig  *Signal
	x    *Array
	beta *SpeciesMap

	mu       sync.Mutex
	shape    []int
	shapeSet bool
}

// NewOperator returns an unbound Operator.
func NewOperator(t *Topology, cfg *EchoConfig) *Operator {
	return &Operator{sig: NewSignal(t, cfg)}
}

// Bind returns an Operator linearized at x. x is copied. When the spatial
// shape is already fixed, x must have that shape.
func (op *Operator) Bind(x *Array) (*Operator, error) {
	beta, err := op.sig.topo.Unpack(x)
	if err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}
	shape, set := op.spatialShape()
	if set && !slices.Equal(shape, x.Shape) {
		return nil, shapef("bind: estimate shape %v, operator shape %v", x.Shape, shape)
	}
	return &Operator{
		sig:      op.sig,
		x:        x.Clone(),
		beta:     beta,
		shape:    shape,
		shapeSet: set,
	}, nil
}

// SetShape fixes the spatial shape. Setting a different shape once one is
// known is an error.
func (op *Operator) SetShape(shape []int) error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.shapeSet {
		if !slices.Equal(op.shape, shape) {
			return shapef("spatial shape already fixed to %v, cannot set %v", op.shape, shape)
		}
		return nil
	}
	op.shape = slices.Clone(shape)
	op.shapeSet = true
	return nil
}

func (op *Operator) spatialShape() ([]int, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return slices.Clone(op.shape), op.shapeSet
}

// Shape returns the spatial shape, or nil if it is not known yet.
func (op *Operator) Shape() []int {
	shape, _ := op.spatialShape()
	return shape
}

func (op *Operator) Signal() *Signal { return op.sig }

// X returns a copy of the linearization point, or nil when unbound.
func (op *Operator) X() *Array {
	if op.x == nil {
		return nil
	}
	return op.x.Clone()
}

// resolve checks that the operator is bound and that a has the given
// trailing dimension and agrees with the spatial shape. An unset shape is
// inferred from a only once a has passed every check.
func (op *Operator) resolve(a *Array, depth int, what string) error {
	if op.beta == nil {
		return fmt.Errorf("%s: %w", what, ErrUnbound)
	}
	if err := a.check(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if a.Depth != depth {
		return shapef("%s: trailing dimension %d, want %d", what, a.Depth, depth)
	}
	op.mu.Lock()
	defer op.mu.Unlock()
	shape := op.shape
	if !op.shapeSet {
		if a.Voxels() == 0 {
			return &ShapeError{Kind: ErrEmptyShape, Msg: fmt.Sprintf("%s: dims %v", what, a.Dims())}
		}
		shape = a.Shape
	}
	if !slices.Equal(a.Shape, shape) {
		return shapef("%s: spatial shape %v, operator shape %v", what, a.Shape, shape)
	}
	if !slices.Equal(op.beta.Shape, shape) {
		return shapef("%s: spatial shape %v, linearization point shape %v", what, shape, op.beta.Shape)
	}
	if !op.shapeSet {
		op.shape = slices.Clone(shape)
		op.shapeSet = true
	}
	return nil
}

// Model returns the per-echo image at the linearization point.
func (op *Operator) Model() (*Array, error) {
	if op.x == nil {
		return nil, fmt.Errorf("model: %w", ErrUnbound)
	}
	if err := op.resolve(op.x, op.sig.topo.NumChannels(), "model"); err != nil {
		return nil, err
	}
	return op.sig.Model(op.beta)
}

// Forward returns J*dx.
func (op *Operator) Forward(dx *Array) (*Array, error) {
	if err := op.resolve(dx, op.sig.topo.NumChannels(), "forward"); err != nil {
		return nil, err
	}
	dBeta, err := op.sig.topo.Unpack(dx)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	return op.sig.Forward(op.beta, dBeta)
}

// Backward returns J^H*dIm as a stacked array.
func (op *Operator) Backward(dIm *Array) (*Array, error) {
	if err := op.resolve(dIm, op.sig.cfg.NumEchoes(), "backward"); err != nil {
		return nil, err
	}
	dBeta, err := op.sig.Backward(op.beta, dIm)
	if err != nil {
		return nil, err
	}
	return op.sig.topo.Pack(dBeta)
}

// Normal returns J^H*J*dx.
func (op *Operator) Normal(dx *Array) (*Array, error) {
	dIm, err := op.Forward(dx)
	if err != nil {
		return nil, err
	}
	return op.Backward(dIm)
}

// Residual returns y - Model(), passed through imaging first when it is not
// nil. The Gauss-Newton increment solves J*dx ≈ Residual.
func (op *Operator) Residual(y *Array, imaging ImagingOperator) (*Array, error) {
	if op.x == nil {
		return nil, fmt.Errorf("residual: %w", ErrUnbound)
	}
	if err := op.resolve(op.x, op.sig.topo.NumChannels(), "residual"); err != nil {
		return nil, err
	}
	return op.sig.Residual(op.beta, y, imaging)
}
