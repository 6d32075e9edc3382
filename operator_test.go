package ideal

import (
	"errors"
	"slices"
	"testing"
)

func TestOperatorUnbound(t *testing.T) {
	cfg := testConfigs(t)["3echo-twopeak"]
	op := NewOperator(WaterFat, cfg)
	if _, err := op.Model(); !errors.Is(err, ErrUnbound) {
		t.Errorf("Model: err = %v, want ErrUnbound", err)
	}
	if _, err := op.Forward(NewArray([]int{2}, 3)); !errors.Is(err, ErrUnbound) {
		t.Errorf("Forward: err = %v, want ErrUnbound", err)
	}
	if _, err := op.Backward(NewArray([]int{2}, 3)); !errors.Is(err, ErrUnbound) {
		t.Errorf("Backward: err = %v, want ErrUnbound", err)
	}
	if _, err := op.Residual(NewArray([]int{2}, 3), nil); !errors.Is(err, ErrUnbound) {
		t.Errorf("Residual: err = %v, want ErrUnbound", err)
	}
	if op.X() != nil {
		t.Error("unbound operator returned a linearization point")
	}
}

func TestOperatorBindWrongChannels(t *testing.T) {
	cfg := testConfigs(t)["3echo-twopeak"]
	_, err := NewOperator(FatMyelin, cfg).Bind(NewArray([]int{2, 2}, 5))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestOperatorShapeInferredFromBackward(t *testing.T) {
	rng := newRand(21)
	cfg := testConfigs(t)["3echo-twopeak"]
	shape := []int{3, 4}
	op := mustBind(t, WaterFat, cfg, randEstimate(rng, WaterFat, shape))
	if op.Shape() != nil {
		t.Fatalf("shape known before first call: %v", op.Shape())
	}
	dx, err := op.Backward(randArray(rng, shape, cfg.NumEchoes(), 1))
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if !slices.Equal(op.Shape(), shape) {
		t.Errorf("inferred shape %v, want %v", op.Shape(), shape)
	}
	if !slices.Equal(dx.Shape, shape) || dx.Depth != 3 {
		t.Errorf("backward dims %v, want %v", dx.Dims(), append(slices.Clone(shape), 3))
	}
}

func TestOperatorShapeFixedAfterInference(t *testing.T) {
	rng := newRand(22)
	cfg := testConfigs(t)["3echo-twopeak"]
	op := mustBind(t, WaterFat, cfg, randEstimate(rng, WaterFat, []int{4, 3}))
	if _, err := op.Forward(randArray(rng, []int{4, 3}, 3, 1)); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	_, err := op.Forward(randArray(rng, []int{3, 4}, 3, 1))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestOperatorEmptyShape(t *testing.T) {
	cfg := testConfigs(t)["3echo-twopeak"]
	op := mustBind(t, WaterFat, cfg, NewArray([]int{0, 4}, 3))
	_, err := op.Forward(NewArray([]int{0, 4}, 3))
	if !errors.Is(err, ErrEmptyShape) {
		t.Fatalf("err = %v, want ErrEmptyShape", err)
	}
}

func TestOperatorSetShape(t *testing.T) {
	rng := newRand(23)
	cfg := testConfigs(t)["3echo-twopeak"]
	op := NewOperator(FatMyelin, cfg)
	if err := op.SetShape([]int{2, 5}); err != nil {
		t.Fatalf("SetShape: %v", err)
	}
	if err := op.SetShape([]int{2, 5}); err != nil {
		t.Errorf("repeating the same shape: %v", err)
	}
	if err := op.SetShape([]int{5, 2}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("err = %v, want ErrShapeMismatch", err)
	}

	if _, err := op.Bind(randEstimate(rng, FatMyelin, []int{5, 2})); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("bind estimate of other shape: err = %v, want ErrShapeMismatch", err)
	}
	b, err := op.Bind(randEstimate(rng, FatMyelin, []int{2, 5}))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := b.Model(); err != nil {
		t.Errorf("Model: %v", err)
	}
}

func TestOperatorRejectedCallLeavesShapeUnset(t *testing.T) {
	rng := newRand(27)
	cfg := testConfigs(t)["3echo-twopeak"]
	shape := []int{4, 3}
	tests := []struct {
		name string
		call func(op *Operator) error
	}{
		{"forward transposed", func(op *Operator) error {
			_, err := op.Forward(randArray(rng, []int{3, 4}, 3, 1))
			return err
		}},
		{"forward wrong channels", func(op *Operator) error {
			_, err := op.Forward(randArray(rng, []int{2, 2}, 5, 1))
			return err
		}},
		{"backward transposed", func(op *Operator) error {
			_, err := op.Backward(randArray(rng, []int{3, 4}, cfg.NumEchoes(), 1))
			return err
		}},
		{"backward wrong echoes", func(op *Operator) error {
			_, err := op.Backward(randArray(rng, []int{2, 2}, cfg.NumEchoes()+1, 1))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := mustBind(t, WaterFat, cfg, randEstimate(rng, WaterFat, shape))
			if err := tt.call(op); !errors.Is(err, ErrShapeMismatch) {
				t.Fatalf("err = %v, want ErrShapeMismatch", err)
			}
			if op.Shape() != nil {
				t.Fatalf("rejected call fixed shape %v", op.Shape())
			}
			if _, err := op.Forward(randArray(rng, shape, 3, 1)); err != nil {
				t.Errorf("Forward after rejected call: %v", err)
			}
			if _, err := op.Model(); err != nil {
				t.Errorf("Model after rejected call: %v", err)
			}
			if !slices.Equal(op.Shape(), shape) {
				t.Errorf("shape %v, want %v", op.Shape(), shape)
			}
		})
	}
}

func TestOperatorBindCopiesEstimate(t *testing.T) {
	rng := newRand(24)
	cfg := testConfigs(t)["6echo-3T-sixpeak"]
	x := randEstimate(rng, WaterFat, []int{4})
	op := mustBind(t, WaterFat, cfg, x)
	before, err := op.Model()
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	x.Data[0] += 10
	after, err := op.Model()
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	if !slices.Equal(before.Data, after.Data) {
		t.Error("mutating the caller's array changed the bound estimate")
	}
	if got := op.X(); got.Data[0] == x.Data[0] {
		t.Error("X() aliases the caller's array")
	}
}

func TestOperatorRebindKeepsShape(t *testing.T) {
	rng := newRand(25)
	cfg := testConfigs(t)["3echo-twopeak"]
	op := mustBind(t, WaterFat, cfg, randEstimate(rng, WaterFat, []int{2, 2}))
	if _, err := op.Model(); err != nil {
		t.Fatalf("Model: %v", err)
	}
	next, err := op.Bind(randEstimate(rng, WaterFat, []int{2, 2}))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if !slices.Equal(next.Shape(), []int{2, 2}) {
		t.Errorf("rebound shape %v, want [2 2]", next.Shape())
	}
	if next.Signal() != op.Signal() {
		t.Error("rebound operator does not share the signal model")
	}
	if next.Signal().EchoConfig() != cfg {
		t.Error("rebound operator does not share the echo configuration")
	}
}

func TestOperatorNormalIsPositive(t *testing.T) {
	rng := newRand(26)
	for name, cfg := range testConfigs(t) {
		t.Run(name, func(t *testing.T) {
			op := mustBind(t, WaterFatMyelin, cfg, randEstimate(rng, WaterFatMyelin, []int{3, 3}))
			dx := randArray(rng, []int{3, 3}, 5, 1)
			n, err := op.Normal(dx)
			if err != nil {
				t.Fatalf("Normal: %v", err)
			}
			q, _ := Inner(dx, n)
			jdx, _ := op.Forward(dx)
			want := Norm(jdx) * Norm(jdx)
			if d := real(q) - want; d > 1e-9*want || d < -1e-9*want {
				t.Errorf("<dx, J^H J dx> = %v, want ||J dx||^2 = %g", q, want)
			}
			if im := imag(q); im > 1e-9*want || im < -1e-9*want {
				t.Errorf("<dx, J^H J dx> has imaginary part %g", im)
			}
		})
	}
}
