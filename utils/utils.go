package utils

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/setanarut/ideal"
	"gopkg.in/yaml.v3"
)

// EchoFile is the YAML form of an acquisition's echo configuration.
type EchoFile struct {
	// Echo times in seconds.
	EchoTimes []float64 `yaml:"echo_times_s"`
	// Main field strength in tesla. Used with the default fat spectrum when
	// no peaks are listed.
	FieldStrength float64 `yaml:"field_strength_t"`
	// Fat peak frequencies in Hz relative to water.
	FatPeaks []float64 `yaml:"fat_peaks_hz,omitempty"`
	// Relative fat peak amplitudes, same length as FatPeaks.
	FatRelAmps []float64 `yaml:"fat_rel_amps,omitempty"`
	// One of waterfat, fatmyelin, waterfatmyelin. Defaults to waterfat.
	Topology string `yaml:"topology,omitempty"`
}

// ReadEchoConfig loads an echo configuration and species topology from a
// YAML file.
func ReadEchoConfig(path string) (*ideal.EchoConfig, *ideal.Topology, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var f EchoFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Build()
}

func (f EchoFile) Build() (*ideal.EchoConfig, *ideal.Topology, error) {
	name := f.Topology
	if name == "" {
		name = ideal.WaterFat.Name
	}
	topo, ok := ideal.Topologies[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown topology %q", ideal.ErrConfig, name)
	}
	if len(f.FatPeaks) == 0 && len(f.FatRelAmps) == 0 {
		if f.FieldStrength <= 0 {
			return nil, nil, fmt.Errorf("%w: field_strength_t is required without fat_peaks_hz", ideal.ErrConfig)
		}
		slog.Debug("utils: using default fat spectrum", "field_strength_t", f.FieldStrength)
		cfg, err := ideal.EchoConfigAt(f.EchoTimes, ideal.DefaultFatSpectrum(), f.FieldStrength)
		return cfg, topo, err
	}
	cfg, err := ideal.NewEchoConfig(f.EchoTimes, f.FatPeaks, f.FatRelAmps)
	return cfg, topo, err
}

func gridSize(m *ideal.SpeciesMap) (w, h int, err error) {
	if len(m.Shape) != 2 {
		return 0, 0, fmt.Errorf("%w: preview needs a 2D grid, have shape %v", ideal.ErrShapeMismatch, m.Shape)
	}
	return m.Shape[1], m.Shape[0], nil
}

// MagnitudeLayers renders |field| of every amplitude channel as a grayscale
// image. All layers share one scale so relative species content stays
// comparable.
func MagnitudeLayers(m *ideal.SpeciesMap) ([]*image.Gray, error) {
	w, h, err := gridSize(m)
	if err != nil {
		return nil, err
	}
	var channels []int
	for _, g := range m.Topology.Groups {
		for _, a := range g.Amplitudes {
			channels = append(channels, a.Channel)
		}
	}
	peak := 0.0
	for _, c := range channels {
		for _, v := range m.Fields[c] {
			peak = max(peak, cmplx.Abs(v))
		}
	}
	if peak == 0 {
		peak = 1
	}
	out := make([]*image.Gray, len(channels))
	for i, c := range channels {
		layer := image.NewGray(image.Rect(0, 0, w, h))
		for y := range h {
			for x := range w {
				a := cmplx.Abs(m.Fields[c][y*w+x]) / peak
				layer.SetGray(x, y, color.Gray{Y: uint8(max(0, min(255, a*255)))})
			}
		}
		out[i] = layer
	}
	return out, nil
}

// FatFractionImage maps the fat fraction of every voxel to a colour between
// water (fraction 0) and fat (fraction 1), blended in Lab space. Voxels
// without signal are black.
func FatFractionImage(m *ideal.SpeciesMap, water, fat colorful.Color) (*image.RGBA, error) {
	w, h, err := gridSize(m)
	if err != nil {
		return nil, err
	}
	ff := m.FatFraction()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	undefined := 0
	for y := range h {
		for x := range w {
			f := ff[y*w+x]
			if math.IsNaN(f) {
				undefined++
				img.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			c := water.BlendLab(fat, f).Clamped()
			img.SetRGBA(x, y, color.RGBA{
				uint8(max(0, min(255, c.R*255))),
				uint8(max(0, min(255, c.G*255))),
				uint8(max(0, min(255, c.B*255))),
				255,
			})
		}
	}
	if undefined > 0 {
		slog.Warn("utils: fat fraction undefined", "voxels", undefined)
	}
	return img, nil
}

func SaveGrayImages(images []*image.Gray, dir, prefix string) error {
	for i := range images {
		if err := SaveImage(images[i], filepath.Join(dir, fmt.Sprintf("%s_%02d.png", prefix, i))); err != nil {
			return err
		}
	}
	return nil
}

func SaveImage(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
