// Package display holds the immutable display-settings snapshot shared by a
// viewer and its inspector panels, and the compare-and-set store that versions it.
package display

import (
	"image/color"
	"strings"
)

// ColorMode selects how channels are combined and colored on screen.
type ColorMode int

const (
	ColorModeComposite ColorMode = iota
	ColorModeColor
	ColorModeGrayscale
	ColorModeHighlightLimits
	ColorModeFire
	ColorModeRedHot
)

// ColorModes lists every mode in menu order.
var ColorModes = []ColorMode{
	ColorModeComposite,
	ColorModeColor,
	ColorModeGrayscale,
	ColorModeHighlightLimits,
	ColorModeFire,
	ColorModeRedHot,
}

func (m ColorMode) String() string {
	switch m {
	case ColorModeComposite:
		return "Composite"
	case ColorModeColor:
		return "Color"
	case ColorModeGrayscale:
		return "Grayscale"
	case ColorModeHighlightLimits:
		return "Highlight Limits"
	case ColorModeFire:
		return "Fire"
	case ColorModeRedHot:
		return "Red Hot"
	default:
		return "Unknown"
	}
}

// Resolve maps a mode onto the one the controls display. Values outside the
// enumeration show as grayscale.
func (m ColorMode) Resolve() ColorMode {
	switch m {
	case ColorModeComposite, ColorModeColor, ColorModeGrayscale,
		ColorModeHighlightLimits, ColorModeFire, ColorModeRedHot:
		return m
	default:
		return ColorModeGrayscale
	}
}

// ColorModeFromString parses a mode name case-insensitively. Unknown names
// resolve to grayscale, matching Resolve.
func ColorModeFromString(name string) ColorMode {
	for _, m := range ColorModes {
		if strings.EqualFold(m.String(), strings.TrimSpace(name)) {
			return m
		}
	}
	return ColorModeGrayscale
}

// ChannelSettings is the display configuration of one channel.
type ChannelSettings struct {
	Name       string
	Color      color.RGBA
	Visible    bool
	ScalingMin int64
	ScalingMax int64
}

// DefaultChannelSettings is what a channel gets before anyone configures it.
func DefaultChannelSettings() ChannelSettings {
	return ChannelSettings{
		Color:      color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Visible:    true,
		ScalingMin: 0,
		ScalingMax: 255,
	}
}

// Settings is an immutable snapshot. Every With* method returns a new value and
// leaves the receiver untouched, so a *Settings can be shared freely between
// goroutines.
type Settings struct {
	colorMode         ColorMode
	autostretch       bool
	ignoredPercentile float64
	roiAutoscale      bool
	channels          []ChannelSettings
}

// DefaultSettings returns the snapshot a fresh store starts with: composite,
// autostretch on, nothing ignored, no channels.
func DefaultSettings() *Settings {
	return &Settings{
		colorMode:   ColorModeComposite,
		autostretch: true,
	}
}

func (s *Settings) ColorMode() ColorMode       { return s.colorMode }
func (s *Settings) AutostretchEnabled() bool   { return s.autostretch }
func (s *Settings) IgnoredPercentile() float64 { return s.ignoredPercentile }
func (s *Settings) ROIAutoscaleEnabled() bool  { return s.roiAutoscale }
func (s *Settings) ChannelCount() int          { return len(s.channels) }

// Channel returns the settings of channel i, or the defaults when the snapshot
// has not configured that channel yet.
func (s *Settings) Channel(i int) ChannelSettings {
	if i < 0 || i >= len(s.channels) {
		return DefaultChannelSettings()
	}
	return s.channels[i]
}

// Channels returns a copy of the per-channel settings.
func (s *Settings) Channels() []ChannelSettings {
	out := make([]ChannelSettings, len(s.channels))
	copy(out, s.channels)
	return out
}

// ChannelColors returns the color of every configured channel in order.
func (s *Settings) ChannelColors() []color.RGBA {
	out := make([]color.RGBA, len(s.channels))
	for i, ch := range s.channels {
		out[i] = ch.Color
	}
	return out
}

func (s *Settings) clone() *Settings {
	c := *s
	c.channels = s.Channels()
	return &c
}

func (s *Settings) WithColorMode(mode ColorMode) *Settings {
	c := s.clone()
	c.colorMode = mode
	return c
}

func (s *Settings) WithAutostretch(enabled bool) *Settings {
	c := s.clone()
	c.autostretch = enabled
	return c
}

func (s *Settings) WithIgnoredPercentile(percentile float64) *Settings {
	c := s.clone()
	c.ignoredPercentile = percentile
	return c
}

func (s *Settings) WithROIAutoscale(enabled bool) *Settings {
	c := s.clone()
	c.roiAutoscale = enabled
	return c
}

// WithChannel replaces channel i, padding any missing channels below it with
// defaults.
func (s *Settings) WithChannel(i int, ch ChannelSettings) *Settings {
	if i < 0 {
		return s
	}
	c := s.clone()
	for len(c.channels) <= i {
		c.channels = append(c.channels, DefaultChannelSettings())
	}
	c.channels[i] = ch
	return c
}

// WithChannelColors assigns colors[i % len(colors)] to each of the first n
// channels.
func (s *Settings) WithChannelColors(colors []color.RGBA, n int) *Settings {
	if len(colors) == 0 {
		return s
	}
	c := s.clone()
	for i := 0; i < n; i++ {
		ch := c.Channel(i)
		ch.Color = colors[i%len(colors)]
		for len(c.channels) <= i {
			c.channels = append(c.channels, DefaultChannelSettings())
		}
		c.channels[i] = ch
	}
	return c
}

// Equal reports structural equality.
func (s *Settings) Equal(o *Settings) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.colorMode != o.colorMode ||
		s.autostretch != o.autostretch ||
		s.ignoredPercentile != o.ignoredPercentile ||
		s.roiAutoscale != o.roiAutoscale ||
		len(s.channels) != len(o.channels) {
		return false
	}
	for i := range s.channels {
		if s.channels[i] != o.channels[i] {
			return false
		}
	}
	return true
}
