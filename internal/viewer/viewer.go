// Package viewer defines what an image viewer must offer an inspector panel,
// and a simulated viewer that offers it without a camera.
package viewer

import (
	"intensity-inspector/internal/display"
	"intensity-inspector/internal/eventbus"
	"intensity-inspector/internal/stats"
)

// Event types published by viewers and data providers.
const (
	EventSettingsChanged = "viewer.settings_changed" // Data: SettingsChange
	EventStatsChanged    = "viewer.stats_changed"    // Data: *stats.Batch (nil = no data)
	EventNewImage        = "provider.new_image"      // Data: NewImage
)

// Axis names a dimension of the acquisition.
type Axis string

const AxisChannel Axis = "channel"

// SettingsChange is the payload of EventSettingsChanged.
type SettingsChange struct {
	Old *display.Settings
	New *display.Settings
}

// ImageRef points at an image in a data provider. Resolving it fails with
// stats.ErrImageNotFound once the provider has been closed.
type ImageRef interface {
	Coords() (stats.Coords, error)
}

// NewImage is the payload of EventNewImage.
type NewImage struct {
	Image ImageRef
}

// EventSource delivers events to registered handlers, from any goroutine.
type EventSource interface {
	RegisterForEvents(h eventbus.EventHandler)
	UnregisterForEvents(h eventbus.EventHandler)
}

// DataProvider is the image store behind a viewer.
type DataProvider interface {
	EventSource
	AxisLength(axis Axis) int
}

// Viewer owns the display settings and the data provider.
type Viewer interface {
	EventSource
	Settings() display.SettingsStore
	DataProvider() DataProvider
}

// StatsPublisher is the capability an inspector needs on top of Viewer.
type StatsPublisher interface {
	// CurrentBatch returns the latest statistics, or nil if none exist.
	CurrentBatch() *stats.Batch
	// SetStatsRate sets how often statistics are computed, in Hz. Zero
	// disables computation; +Inf computes for every displayed image.
	SetStatsRate(hz float64)
}
