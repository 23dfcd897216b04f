package render

import (
	"fmt"
	"sort"
)

// LUTSize is the number of entries in a colormap lookup table. The LUT is
// uploaded as a 256x1 RGBA texture and sampled linearly.
const LUTSize = 256

// Built-in colormap names.
const (
	ColormapGray    = "gray"
	ColormapViridis = "viridis"
	ColormapMagma   = "magma"
	ColormapInferno = "inferno"
)

// DefaultColormap is used when no colormap was chosen.
const DefaultColormap = ColormapGray

// Each colormap is defined by five evenly spaced RGB stops; the LUT
// interpolates linearly between them.
var colormapStops = map[string][5][3]uint8{
	ColormapGray: {
		{0, 0, 0}, {64, 64, 64}, {128, 128, 128}, {191, 191, 191}, {255, 255, 255},
	},
	ColormapViridis: {
		{68, 1, 84}, {59, 82, 139}, {33, 145, 140}, {94, 201, 98}, {253, 231, 37},
	},
	ColormapMagma: {
		{0, 0, 4}, {81, 18, 124}, {183, 55, 121}, {252, 137, 97}, {252, 253, 191},
	},
	ColormapInferno: {
		{0, 0, 4}, {87, 16, 110}, {188, 55, 84}, {249, 142, 9}, {252, 255, 164},
	},
}

// Colormaps returns the sorted names of the built-in colormaps.
func Colormaps() []string {
	names := make([]string, 0, len(colormapStops))
	for name := range colormapStops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildLUT expands a colormap into its RGBA lookup table, LUTSize entries
// of 4 bytes each with alpha fixed at 255.
func BuildLUT(name string) ([]byte, error) {
	stops, ok := colormapStops[name]
	if !ok {
		return nil, fmt.Errorf("render: unknown colormap %q", name)
	}
	lut := make([]byte, LUTSize*4)
	for i := 0; i < LUTSize; i++ {
		// Position within the stop list, in [0, len(stops)-1].
		pos := float64(i) / float64(LUTSize-1) * float64(len(stops)-1)
		lo := int(pos)
		if lo >= len(stops)-1 {
			lo = len(stops) - 2
		}
		frac := pos - float64(lo)
		for c := 0; c < 3; c++ {
			a := float64(stops[lo][c])
			b := float64(stops[lo+1][c])
			lut[i*4+c] = uint8(a + (b-a)*frac + 0.5)
		}
		lut[i*4+3] = 255
	}
	return lut, nil
}

// sampleLUT linearly interpolates the table at t in [0, 1], mirroring what
// a linearly filtered 256x1 texture lookup does.
func sampleLUT(lut []byte, t float32) (r, g, b, a uint8) {
	if t <= 0 {
		return lut[0], lut[1], lut[2], lut[3]
	}
	if t >= 1 {
		n := len(lut) - 4
		return lut[n], lut[n+1], lut[n+2], lut[n+3]
	}
	pos := float64(t) * float64(LUTSize-1)
	lo := int(pos)
	frac := pos - float64(lo)
	mix := func(c int) uint8 {
		a := float64(lut[lo*4+c])
		b := float64(lut[(lo+1)*4+c])
		return uint8(a + (b-a)*frac + 0.5)
	}
	return mix(0), mix(1), mix(2), mix(3)
}
