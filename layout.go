package ideal

import (
	"math/cmplx"
	"slices"
)

const (
	ChannelWater          = "water"
	ChannelFat            = "fat"
	ChannelMyelin         = "myelin"
	ChannelOffRes         = "offres"
	ChannelOffResWater    = "offres_water"
	ChannelOffResFat      = "offres_fat"
	ChannelOffResWaterFat = "offres_waterfat"
	ChannelOffResMyelin   = "offres_myelin"
)

// Amplitude is one species amplitude channel inside a group. Shifted
// amplitudes are multiplied by the per-echo chemical-shift weight, the others
// by one.
type Amplitude struct {
	Channel int
	Shifted bool
}

// Group is a set of amplitude channels sharing one off-resonance channel.
// Its contribution at echo j is
//
//	sum(m_a * beta[a]) * exp(i*2*pi*TE[j] * beta[OffRes])
type Group struct {
	Amplitudes []Amplitude
	OffRes     int
}

// Topology describes how the channels of a stacked parameter array map to
// species and which species share an off-resonance term.
type Topology struct {
	Name     string
	Channels []string
	Groups   []Group
}

var (
	// WaterFat: water and fat share one off-resonance term.
	WaterFat = &Topology{
		Name:     "waterfat",
		Channels: []string{ChannelWater, ChannelFat, ChannelOffRes},
		Groups: []Group{
			{Amplitudes: []Amplitude{{0, false}, {1, true}}, OffRes: 2},
		},
	}
	// FatMyelin: water and fat/myelin each carry their own off-resonance.
	FatMyelin = &Topology{
		Name:     "fatmyelin",
		Channels: []string{ChannelWater, ChannelFat, ChannelOffResWater, ChannelOffResFat},
		Groups: []Group{
			{Amplitudes: []Amplitude{{0, false}}, OffRes: 2},
			{Amplitudes: []Amplitude{{1, true}}, OffRes: 3},
		},
	}
	// WaterFatMyelin: water and fat share one off-resonance, myelin has its own.
	WaterFatMyelin = &Topology{
		Name:     "waterfatmyelin",
		Channels: []string{ChannelWater, ChannelFat, ChannelMyelin, ChannelOffResWaterFat, ChannelOffResMyelin},
		Groups: []Group{
			{Amplitudes: []Amplitude{{0, false}, {1, true}}, OffRes: 3},
			{Amplitudes: []Amplitude{{2, true}}, OffRes: 4},
		},
	}
)

// Topologies lists the predefined topologies by name.
var Topologies = map[string]*Topology{
	WaterFat.Name:       WaterFat,
	FatMyelin.Name:      FatMyelin,
	WaterFatMyelin.Name: WaterFatMyelin,
}

func (t *Topology) NumChannels() int {
	return len(t.Channels)
}

// Index returns the position of the named channel, or -1.
func (t *Topology) Index(name string) int {
	return slices.Index(t.Channels, name)
}

// SpeciesMap is the unpacked view of a stacked parameter array: one complex
// field per channel, each laid out over the spatial grid. Off-resonance
// fields hold frequency (Hz) in the real part and relaxation rate (1/s) in
// the imaginary part.
type SpeciesMap struct {
	Topology *Topology
	Shape    []int
	Fields   [][]complex128
}

func NewSpeciesMap(t *Topology, shape []int) *SpeciesMap {
	n := voxelCount(shape)
	fields := make([][]complex128, t.NumChannels())
	for c := range fields {
		fields[c] = make([]complex128, n)
	}
	return &SpeciesMap{Topology: t, Shape: slices.Clone(shape), Fields: fields}
}

// Voxels returns the number of spatial grid points.
func (m *SpeciesMap) Voxels() int {
	if len(m.Fields) == 0 {
		return 0
	}
	return len(m.Fields[0])
}

// Field returns the named channel, or nil when the topology has no such
// channel.
func (m *SpeciesMap) Field(name string) []complex128 {
	i := m.Topology.Index(name)
	if i < 0 {
		return nil
	}
	return m.Fields[i]
}

func (m *SpeciesMap) Water() []complex128  { return m.Field(ChannelWater) }
func (m *SpeciesMap) Fat() []complex128    { return m.Field(ChannelFat) }
func (m *SpeciesMap) Myelin() []complex128 { return m.Field(ChannelMyelin) }

// Unpack splits the trailing channel dimension of x into named fields by
// position.
func (t *Topology) Unpack(x *Array) (*SpeciesMap, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	if x.Depth != t.NumChannels() {
		return nil, shapef("%s topology expects %d channels, array has %d", t.Name, t.NumChannels(), x.Depth)
	}
	m := NewSpeciesMap(t, x.Shape)
	nc := x.Depth
	for v := range x.Voxels() {
		row := x.Data[v*nc : (v+1)*nc]
		for c, val := range row {
			m.Fields[c][v] = val
		}
	}
	return m, nil
}

// Pack is the exact inverse of Unpack.
func (t *Topology) Pack(m *SpeciesMap) (*Array, error) {
	if len(m.Fields) != t.NumChannels() {
		return nil, shapef("%s topology expects %d channels, species map has %d", t.Name, t.NumChannels(), len(m.Fields))
	}
	x := NewArray(m.Shape, t.NumChannels())
	n := x.Voxels()
	for c, f := range m.Fields {
		if len(f) != n {
			return nil, shapef("channel %s has %d voxels, shape %v needs %d", t.Channels[c], len(f), m.Shape, n)
		}
	}
	nc := x.Depth
	for v := range n {
		for c := range nc {
			x.Data[v*nc+c] = m.Fields[c][v]
		}
	}
	return x, nil
}

// FatFraction returns |fat| / (|water| + |fat|) per voxel. Voxels with no
// signal yield NaN.
func (m *SpeciesMap) FatFraction() []float64 {
	water, fat := m.Water(), m.Fat()
	out := make([]float64, m.Voxels())
	if water == nil || fat == nil {
		return out
	}
	for v := range out {
		w, f := cmplx.Abs(water[v]), cmplx.Abs(fat[v])
		out[v] = f / (w + f)
	}
	return out
}
