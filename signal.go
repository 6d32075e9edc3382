package ideal

import (
	"math/cmplx"
	"slices"

	"gonum.org/v1/gonum/cmplxs"
)

// ImagingOperator maps per-echo images to the measurement domain, e.g. a
// non-uniform Fourier transform with coil combination. Only the forward
// direction is used here.
type ImagingOperator interface {
	Forward(im *Array) (*Array, error)
}

// Signal evaluates the IDEAL signal model of one topology and its Jacobian.
// All methods are pure functions of their arguments.
//
// For echo j with Cte = i*2*pi*TE[j] and chemical-shift weight w[j], each
// group g contributes
//
//	A_g * exp(Cte * beta[off_g]),  A_g = sum_a m_a * beta[a],  m_a in {1, w[j]}
//
// and the image is the sum over groups.
type Signal struct {
	topo *Topology
	cfg  *EchoConfig
}

func NewSignal(t *Topology, cfg *EchoConfig) *Signal {
	return &Signal{topo: t, cfg: cfg}
}

func (s *Signal) Topology() *Topology { return s.topo }

func (s *Signal) EchoConfig() *EchoConfig { return s.cfg }

func (s *Signal) checkMap(m *SpeciesMap, what string) error {
	if len(m.Fields) != s.topo.NumChannels() {
		return shapef("%s: %s topology expects %d channels, have %d", what, s.topo.Name, s.topo.NumChannels(), len(m.Fields))
	}
	n := voxelCount(m.Shape)
	for c, f := range m.Fields {
		if len(f) != n {
			return shapef("%s: channel %s has %d voxels, want %d", what, s.topo.Channels[c], len(f), n)
		}
	}
	return nil
}

func (s *Signal) checkImage(im *Array, shape []int, what string) error {
	if err := im.check(); err != nil {
		return err
	}
	if im.Depth != s.cfg.NumEchoes() {
		return shapef("%s: %d echoes configured, image has %d", what, s.cfg.NumEchoes(), im.Depth)
	}
	if !slices.Equal(im.Shape, shape) {
		return shapef("%s: spatial shape %v, want %v", what, im.Shape, shape)
	}
	return nil
}

func (a Amplitude) multiplier(w complex128) complex128 {
	if a.Shifted {
		return w
	}
	return 1
}

// amplitude returns sum_a m_a * f[a][v].
func (g *Group) amplitude(f [][]complex128, v int, w complex128) complex128 {
	var sum complex128
	for _, a := range g.Amplitudes {
		sum += a.multiplier(w) * f[a.Channel][v]
	}
	return sum
}

// Model evaluates the per-echo image of beta.
func (s *Signal) Model(beta *SpeciesMap) (*Array, error) {
	if err := s.checkMap(beta, "model"); err != nil {
		return nil, err
	}
	ne := s.cfg.NumEchoes()
	weights := s.cfg.Weights()
	im := NewArray(beta.Shape, ne)
	f := beta.Fields
	for j := range ne {
		cte := s.cfg.phase(j)
		w := weights[j]
		for v := range beta.Voxels() {
			var sum complex128
			for gi := range s.topo.Groups {
				g := &s.topo.Groups[gi]
				sum += g.amplitude(f, v, w) * cmplx.Exp(cte*f[g.OffRes][v])
			}
			im.Data[v*ne+j] = sum
		}
	}
	return im, nil
}

// Forward returns the Jacobian of Model at beta applied to dBeta:
//
//	d_im[j] = sum_g (sum_a m_a*dBeta[a] + A_g*Cte*dBeta[off_g]) * exp(Cte*beta[off_g])
func (s *Signal) Forward(beta, dBeta *SpeciesMap) (*Array, error) {
	if err := s.checkMap(beta, "forward"); err != nil {
		return nil, err
	}
	if err := s.checkMap(dBeta, "forward increment"); err != nil {
		return nil, err
	}
	if !slices.Equal(dBeta.Shape, beta.Shape) {
		return nil, shapef("forward: increment shape %v, estimate shape %v", dBeta.Shape, beta.Shape)
	}
	ne := s.cfg.NumEchoes()
	weights := s.cfg.Weights()
	dIm := NewArray(beta.Shape, ne)
	f, df := beta.Fields, dBeta.Fields
	for j := range ne {
		cte := s.cfg.phase(j)
		w := weights[j]
		for v := range beta.Voxels() {
			var sum complex128
			for gi := range s.topo.Groups {
				g := &s.topo.Groups[gi]
				d := g.amplitude(df, v, w) + g.amplitude(f, v, w)*cte*df[g.OffRes][v]
				sum += d * cmplx.Exp(cte*f[g.OffRes][v])
			}
			dIm.Data[v*ne+j] = sum
		}
	}
	return dIm, nil
}

// Backward applies the Hermitian adjoint of Forward at beta to dIm. Each
// output channel accumulates conj(partial derivative) * dIm over all echoes.
func (s *Signal) Backward(beta *SpeciesMap, dIm *Array) (*SpeciesMap, error) {
	if err := s.checkMap(beta, "backward"); err != nil {
		return nil, err
	}
	if err := s.checkImage(dIm, beta.Shape, "backward"); err != nil {
		return nil, err
	}
	ne := s.cfg.NumEchoes()
	weights := s.cfg.Weights()
	out := NewSpeciesMap(s.topo, beta.Shape)
	f, df := beta.Fields, out.Fields
	for j := range ne {
		cte := s.cfg.phase(j)
		w := weights[j]
		for v := range beta.Voxels() {
			y := dIm.Data[v*ne+j]
			for gi := range s.topo.Groups {
				g := &s.topo.Groups[gi]
				e := cmplx.Exp(cte * f[g.OffRes][v])
				for _, a := range g.Amplitudes {
					df[a.Channel][v] += cmplx.Conj(a.multiplier(w)*e) * y
				}
				df[g.OffRes][v] += cmplx.Conj(cte*g.amplitude(f, v, w)*e) * y
			}
		}
	}
	return out, nil
}

// Residual returns y - Model(beta), or y - imaging.Forward(Model(beta)) when
// imaging is not nil.
func (s *Signal) Residual(beta *SpeciesMap, y *Array, imaging ImagingOperator) (*Array, error) {
	pred, err := s.Model(beta)
	if err != nil {
		return nil, err
	}
	if imaging != nil {
		if pred, err = imaging.Forward(pred); err != nil {
			return nil, err
		}
		if pred == nil {
			return nil, shapef("residual: imaging operator returned no image")
		}
	}
	if err := y.check(); err != nil {
		return nil, err
	}
	if !slices.Equal(y.Shape, pred.Shape) || y.Depth != pred.Depth {
		return nil, shapef("residual: data dims %v, prediction dims %v", y.Dims(), pred.Dims())
	}
	r := &Array{Shape: slices.Clone(y.Shape), Depth: y.Depth, Data: make([]complex128, len(y.Data))}
	cmplxs.SubTo(r.Data, y.Data, pred.Data)
	return r, nil
}
