package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorFor(t *testing.T) {
	tests := []struct {
		name     string
		mag      float64
		expected Color
	}{
		{"strong", 6.5, ColorRed},
		{"boundary 6", 6.0, ColorRed},
		{"just below 6", 5.99, ColorDarkOrange},
		{"boundary 5", 5.0, ColorDarkOrange},
		{"boundary 4", 4.0, ColorOrange},
		{"boundary 3", 3.0, ColorLightOrange},
		{"just below 3", 2.9, ColorYellow},
		{"zero", 0, ColorYellow},
		{"negative", -0.8, ColorYellow},
		{"huge", 9.5, ColorRed},
		{"positive infinity", math.Inf(1), ColorRed},
		{"negative infinity", math.Inf(-1), ColorYellow},
		{"NaN", math.NaN(), ColorYellow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ColorFor(tt.mag))
		})
	}
}

func TestColorFor_NoGaps(t *testing.T) {
	valid := map[Color]bool{
		ColorRed: true, ColorDarkOrange: true, ColorOrange: true, ColorLightOrange: true, ColorYellow: true,
	}
	for m := -2.0; m <= 10.0; m += 0.01 {
		assert.True(t, valid[ColorFor(m)], "magnitude %v has no band", m)
	}
}

func TestColorHex(t *testing.T) {
	assert.Equal(t, "#ff0000", ColorRed.Hex())
	assert.Equal(t, "#ff4500", ColorDarkOrange.Hex())
	assert.Equal(t, "#ff8c00", ColorOrange.Hex())
	assert.Equal(t, "#ffa500", ColorLightOrange.Hex())
	assert.Equal(t, "#ffff00", ColorYellow.Hex())
}

func TestEncoder_Classic(t *testing.T) {
	enc := NewEncoder(ClassicRadiusTable)

	tests := []struct {
		mag    float64
		color  Color
		radius float64
	}{
		{6.5, ColorRed, 5000 * 6.5 * 2.5},
		{5.2, ColorDarkOrange, 5000 * 5.2 * 1.8},
		{4.5, ColorOrange, 5000 * 4.5},
		{2.9, ColorYellow, 5000 * 2.9},
		{0, ColorYellow, 0},
		{-1.2, ColorYellow, 0},
	}

	for _, tt := range tests {
		color, radius := enc.Encode(tt.mag)
		assert.Equal(t, tt.color, color, "mag %v", tt.mag)
		assert.InDelta(t, tt.radius, radius, 1e-6, "mag %v", tt.mag)
	}
}

func TestEncoder_Extended(t *testing.T) {
	enc := NewEncoder(ExtendedRadiusTable)

	tests := []struct {
		mag    float64
		radius float64
	}{
		{6.5, 5000 * 6.5 * 2.5},
		{5.0, 5000 * 5.0 * 1.8},
		{4.0, 5000 * 4.0 * 1.3},
		{3.5, 5000 * 3.5 * 1.0},
		{2.9, 5000 * 2.9 * 0.7},
	}

	for _, tt := range tests {
		_, radius := enc.Encode(tt.mag)
		assert.InDelta(t, tt.radius, radius, 1e-6, "mag %v", tt.mag)
	}
}

func TestEncoder_HighestBandHasLargestMultiplier(t *testing.T) {
	for _, table := range []RadiusTable{ClassicRadiusTable, ExtendedRadiusTable} {
		t.Run(table.Name, func(t *testing.T) {
			enc := NewEncoder(table)
			color, radius := enc.Encode(6.5)
			assert.Equal(t, ColorRed, color)
			assert.InDelta(t, 6.5*5000*2.5, radius, 1e-6)

			for _, b := range table.Bands {
				assert.LessOrEqual(t, b.Multiplier, 2.5)
			}

			low, _ := enc.Encode(2.9)
			assert.Equal(t, ColorYellow, low)
		})
	}
}

func TestEncoder_Deterministic(t *testing.T) {
	enc := NewEncoder(ExtendedRadiusTable)
	c1, r1 := enc.Encode(4.4)
	c2, r2 := enc.Encode(4.4)
	assert.Equal(t, c1, c2)
	assert.Equal(t, r1, r2)
}

func TestEncoder_NaN(t *testing.T) {
	enc := NewEncoder(ClassicRadiusTable)
	color, radius := enc.Encode(math.NaN())
	assert.Equal(t, ColorYellow, color)
	assert.Zero(t, radius)
}

func TestEncodeQuake(t *testing.T) {
	enc := NewEncoder(ClassicRadiusTable)

	t.Run("numeric magnitude", func(t *testing.T) {
		out := enc.EncodeQuake(Earthquake{ExternalID: "us1", Magnitude: Float(5.2)})
		assert.Equal(t, "us1", out.ExternalID)
		assert.Equal(t, ColorDarkOrange, out.Encoding.Color)
		assert.True(t, out.Encoding.Renderable)
		assert.InDelta(t, 46800, out.Encoding.RadiusMeters, 1e-6)
	})

	t.Run("missing magnitude", func(t *testing.T) {
		out := enc.EncodeQuake(Earthquake{ExternalID: "us2"})
		assert.False(t, out.Encoding.Renderable)
		assert.Zero(t, out.Encoding.RadiusMeters)
		assert.Equal(t, ColorYellow, out.Encoding.Color)
	})
}

func TestRadiusTableByName(t *testing.T) {
	classic, err := RadiusTableByName("")
	require.NoError(t, err)
	assert.Equal(t, "classic", classic.Name)

	extended, err := RadiusTableByName("extended")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, extended.Fallback, 1e-9)

	_, err = RadiusTableByName("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestRadiusTable_Validate(t *testing.T) {
	t.Run("sorts bands descending", func(t *testing.T) {
		table := RadiusTable{
			Bands:    []RadiusBand{{Min: 3, Multiplier: 1}, {Min: 6, Multiplier: 3}, {Min: 5, Multiplier: 2}},
			Fallback: 0.5,
		}
		require.NoError(t, table.Validate())
		assert.InDelta(t, 6.0, table.Bands[0].Min, 1e-9)
		assert.InDelta(t, 3.0, table.Bands[2].Min, 1e-9)

		_, radius := NewEncoder(table).Encode(5.5)
		assert.InDelta(t, 5000*5.5*2, radius, 1e-6)
	})

	t.Run("rejects non-positive fallback", func(t *testing.T) {
		table := RadiusTable{Fallback: 0}
		require.Error(t, table.Validate())
	})

	t.Run("rejects non-positive multiplier", func(t *testing.T) {
		table := RadiusTable{Bands: []RadiusBand{{Min: 5, Multiplier: -1}}, Fallback: 1}
		require.Error(t, table.Validate())
	})
}

func TestLegend(t *testing.T) {
	legend := Legend()
	require.Len(t, legend, 5)
	assert.Equal(t, "M 2+", legend[0].Label)
	assert.Equal(t, ColorYellow, legend[0].Color)
	assert.Equal(t, "M 6+", legend[4].Label)
	assert.Equal(t, "#ff0000", legend[4].Hex)
}
