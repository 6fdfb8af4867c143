package inspector

import (
	"image/color"
	"math"
)

// Preference keys.
const (
	PrefUpdateRate = "HistogramUpdateFrequency"
	PrefPalette    = "ColorPalette"
)

const (
	DefaultUpdateRate     = "1 Hz"
	OverlayUpdateDisabled = "UPDATE DISABLED"
	CustomPaletteLabel    = "Custom"
)

// UpdateRate is a histogram update frequency offered to the user.
type UpdateRate struct {
	Label string
	Hz    float64
}

// UpdateRates lists the selectable rates in menu order.
var UpdateRates = []UpdateRate{
	{Label: "Every Displayed Image", Hz: math.Inf(1)},
	{Label: "5 Hz", Hz: 5},
	{Label: "2 Hz", Hz: 2},
	{Label: "1 Hz", Hz: 1},
	{Label: "0.5 Hz", Hz: 0.5},
	{Label: "Never", Hz: 0},
}

func LookupUpdateRate(label string) (UpdateRate, bool) {
	for _, r := range UpdateRates {
		if r.Label == label {
			return r, true
		}
	}
	return UpdateRate{}, false
}

// Palette is a named list of channel colors.
type Palette struct {
	Label  string
	Colors []color.RGBA
}

// Contains reports whether every color in colors appears in the palette.
func (p Palette) Contains(colors []color.RGBA) bool {
	for _, c := range colors {
		found := false
		for _, pc := range p.Colors {
			if pc == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
