package ideal

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// GyromagneticRatio of hydrogen in MHz/T.
const GyromagneticRatio = 42.577478518

// FatSpectrum is a multi-peak fat model. Frequencies are relative to water.
type FatSpectrum struct {
	// Peak offsets in ppm (negative: fat resonates below water).
	PPM []float64
	// Relative peak amplitudes. Not normalized.
	RelAmps []float64
}

// DefaultFatSpectrum returns the six-peak liver fat model.
func DefaultFatSpectrum() FatSpectrum {
	return FatSpectrum{
		PPM:     []float64{-3.80, -3.40, -2.60, -1.94, -0.39, 0.60},
		RelAmps: []float64{0.087, 0.693, 0.128, 0.004, 0.039, 0.048},
	}
}

// FrequenciesAt converts the peak offsets to Hz at field strength b0 (tesla).
func (s FatSpectrum) FrequenciesAt(b0 float64) []float64 {
	return floats.ScaleTo(make([]float64, len(s.PPM)), GyromagneticRatio*b0, s.PPM)
}

// EchoConfig holds echo times and the fat spectral model. It is immutable
// once constructed; the per-echo chemical-shift weights are filled once on
// first use and shared by every operator built on it.
type EchoConfig struct {
	tes     []float64
	freqs   []float64
	relAmps []float64

	once    sync.Once
	weights []complex128
}

// NewEchoConfig copies its arguments. tes are echo times in seconds, freqs
// fat peak frequencies in Hz relative to water, relAmps the matching peak
// amplitudes.
func NewEchoConfig(tes, freqs, relAmps []float64) (*EchoConfig, error) {
	if len(freqs) != len(relAmps) {
		return nil, fmt.Errorf("%w: %d fat peak frequencies but %d relative amplitudes", ErrConfig, len(freqs), len(relAmps))
	}
	return &EchoConfig{
		tes:     slices.Clone(tes),
		freqs:   slices.Clone(freqs),
		relAmps: slices.Clone(relAmps),
	}, nil
}

// EchoConfigAt builds a configuration from a fat spectrum evaluated at field
// strength b0 (tesla).
func EchoConfigAt(tes []float64, spectrum FatSpectrum, b0 float64) (*EchoConfig, error) {
	return NewEchoConfig(tes, spectrum.FrequenciesAt(b0), spectrum.RelAmps)
}

func (c *EchoConfig) NumEchoes() int { return len(c.tes) }

func (c *EchoConfig) EchoTimes() []float64 { return slices.Clone(c.tes) }

func (c *EchoConfig) PeakFrequencies() []float64 { return slices.Clone(c.freqs) }

func (c *EchoConfig) RelativeAmplitudes() []float64 { return slices.Clone(c.relAmps) }

// phase returns i*2*pi*TE[j].
func (c *EchoConfig) phase(j int) complex128 {
	return complex(0, 2*math.Pi*c.tes[j])
}

// Weights returns the chemical-shift weight of every echo,
//
//	w[j] = sum_k relAmps[k] * exp(i*2*pi*TE[j]*freqs[k])
//
// The returned slice is shared and must not be modified.
func (c *EchoConfig) Weights() []complex128 {
	c.once.Do(func() {
		c.weights = make([]complex128, len(c.tes))
		for j := range c.tes {
			cte := c.phase(j)
			var w complex128
			for k, f := range c.freqs {
				w += complex(c.relAmps[k], 0) * cmplx.Exp(cte*complex(f, 0))
			}
			c.weights[j] = w
		}
	})
	return c.weights
}

// Weight returns the chemical-shift weight of echo j.
func (c *EchoConfig) Weight(j int) complex128 {
	return c.Weights()[j]
}
