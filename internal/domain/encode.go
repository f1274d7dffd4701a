package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Color is a magnitude band's display category.
type Color string

const (
	ColorRed         Color = "red"
	ColorDarkOrange  Color = "dark_orange"
	ColorOrange      Color = "orange"
	ColorLightOrange Color = "light_orange"
	ColorYellow      Color = "yellow"
)

// Hex returns the CSS color used by the dashboard for the category.
func (c Color) Hex() string {
	switch c {
	case ColorRed:
		return "#ff0000"
	case ColorDarkOrange:
		return "#ff4500"
	case ColorOrange:
		return "#ff8c00"
	case ColorLightOrange:
		return "#ffa500"
	default:
		return "#ffff00"
	}
}

// ColorFor maps a magnitude onto its color band. Lower bounds are inclusive,
// so 3.0, 4.0, 5.0 and 6.0 fall into the higher band. NaN is Yellow.
func ColorFor(mag float64) Color {
	switch {
	case mag >= 6:
		return ColorRed
	case mag >= 5:
		return ColorDarkOrange
	case mag >= 4:
		return ColorOrange
	case mag >= 3:
		return ColorLightOrange
	default:
		return ColorYellow
	}
}

// baseRadiusMeters is the radius of a magnitude 1 circle before banding.
const baseRadiusMeters = 5000

// RadiusBand scales the radius of magnitudes at or above Min.
type RadiusBand struct {
	Min        float64 `yaml:"min"`
	Multiplier float64 `yaml:"multiplier"`
}

// RadiusTable is an ordered set of bands plus the multiplier used below the
// lowest band.
type RadiusTable struct {
	Name     string       `yaml:"name"`
	Bands    []RadiusBand `yaml:"bands"`
	Fallback float64      `yaml:"fallback"`
}

// ClassicRadiusTable only boosts strong quakes.
var ClassicRadiusTable = RadiusTable{
	Name: "classic",
	Bands: []RadiusBand{
		{Min: 6, Multiplier: 2.5},
		{Min: 5, Multiplier: 1.8},
	},
	Fallback: 1.0,
}

// ExtendedRadiusTable also shrinks micro quakes below magnitude 3.
var ExtendedRadiusTable = RadiusTable{
	Name: "extended",
	Bands: []RadiusBand{
		{Min: 6, Multiplier: 2.5},
		{Min: 5, Multiplier: 1.8},
		{Min: 4, Multiplier: 1.3},
		{Min: 3, Multiplier: 1.0},
	},
	Fallback: 0.7,
}

// RadiusTableByName resolves one of the built-in tables.
func RadiusTableByName(name string) (RadiusTable, error) {
	switch name {
	case "", ClassicRadiusTable.Name:
		return ClassicRadiusTable, nil
	case ExtendedRadiusTable.Name:
		return ExtendedRadiusTable, nil
	default:
		return RadiusTable{}, fmt.Errorf("unknown radius table %q", name)
	}
}

// Validate checks that every multiplier is positive. It also sorts the bands
// by descending lower bound so lookups can stop at the first match.
func (t *RadiusTable) Validate() error {
	if t.Fallback <= 0 {
		return errors.New("radius table fallback must be positive")
	}
	for _, b := range t.Bands {
		if b.Multiplier <= 0 || math.IsNaN(b.Min) {
			return fmt.Errorf("invalid radius band min=%v multiplier=%v", b.Min, b.Multiplier)
		}
	}
	sort.SliceStable(t.Bands, func(i, j int) bool { return t.Bands[i].Min > t.Bands[j].Min })
	return nil
}

func (t RadiusTable) multiplier(mag float64) float64 {
	for _, b := range t.Bands {
		if mag >= b.Min {
			return b.Multiplier
		}
	}
	return t.Fallback
}

// Encoder derives colors and circle radii from magnitudes.
type Encoder struct {
	table RadiusTable
}

// NewEncoder creates an Encoder for the given radius table.
func NewEncoder(table RadiusTable) *Encoder {
	return &Encoder{table: table}
}

// Table returns the radius table in use.
func (e *Encoder) Table() RadiusTable {
	return e.table
}

// Encode maps a magnitude to its color and radius in meters. Radii never go
// below zero.
func (e *Encoder) Encode(mag float64) (Color, float64) {
	color := ColorFor(mag)
	if math.IsNaN(mag) || mag <= 0 {
		return color, 0
	}
	return color, baseRadiusMeters * mag * e.table.multiplier(mag)
}

// EncodeQuake attaches the encoding for a quake's magnitude.
func (e *Encoder) EncodeQuake(q Earthquake) EncodedQuake {
	mag, ok := q.Mag()
	if !ok {
		return EncodedQuake{Earthquake: q, Encoding: Encoding{Color: ColorYellow}}
	}
	color, radius := e.Encode(mag)
	return EncodedQuake{
		Earthquake: q,
		Encoding:   Encoding{Color: color, RadiusMeters: radius, Renderable: true},
	}
}

// LegendEntry is one row of the magnitude legend.
type LegendEntry struct {
	Label string `json:"label"`
	Color Color  `json:"color"`
	Hex   string `json:"hex"`
}

// Legend lists the color bands from M 2+ to M 6+.
func Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, 5)
	for m := 2; m <= 6; m++ {
		c := ColorFor(float64(m))
		entries = append(entries, LegendEntry{
			Label: fmt.Sprintf("M %d+", m),
			Color: c,
			Hex:   c.Hex(),
		})
	}
	return entries
}
