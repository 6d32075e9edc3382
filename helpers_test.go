package ideal

import (
	"math/rand/v2"
	"testing"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func randComplex(rng *rand.Rand, scale float64) complex128 {
	return complex(scale*rng.NormFloat64(), scale*rng.NormFloat64())
}

func randArray(rng *rand.Rand, shape []int, depth int, scale float64) *Array {
	a := NewArray(shape, depth)
	for i := range a.Data {
		a.Data[i] = randComplex(rng, scale)
	}
	return a
}

// randEstimate draws a plausible linearization point: unit-scale amplitudes,
// off-resonance within +-60 Hz and relaxation rates in [0, 40) 1/s.
func randEstimate(rng *rand.Rand, t *Topology, shape []int) *Array {
	x := NewArray(shape, t.NumChannels())
	off := make(map[int]bool)
	for _, g := range t.Groups {
		off[g.OffRes] = true
	}
	nc := x.Depth
	for v := range x.Voxels() {
		for c := range nc {
			if off[c] {
				x.Data[v*nc+c] = complex(120*rng.Float64()-60, 40*rng.Float64())
			} else {
				x.Data[v*nc+c] = randComplex(rng, 1)
			}
		}
	}
	return x
}

func mustEchoConfig(t *testing.T, tes, freqs, amps []float64) *EchoConfig {
	t.Helper()
	cfg, err := NewEchoConfig(tes, freqs, amps)
	if err != nil {
		t.Fatalf("NewEchoConfig: %v", err)
	}
	return cfg
}

func mustBind(t *testing.T, topo *Topology, cfg *EchoConfig, x *Array) *Operator {
	t.Helper()
	op, err := NewOperator(topo, cfg).Bind(x)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return op
}

// testConfigs are two distinct echo trains and fat models.
func testConfigs(t *testing.T) map[string]*EchoConfig {
	t.Helper()
	threeT, err := EchoConfigAt([]float64{1.2e-3, 2.4e-3, 3.6e-3, 4.8e-3, 6.0e-3, 7.2e-3}, DefaultFatSpectrum(), 3)
	if err != nil {
		t.Fatalf("EchoConfigAt: %v", err)
	}
	return map[string]*EchoConfig{
		"6echo-3T-sixpeak": threeT,
		"3echo-twopeak": mustEchoConfig(t,
			[]float64{0.5e-3, 1.7e-3, 2.9e-3},
			[]float64{-210, -160},
			[]float64{0.8, 0.2}),
	}
}
