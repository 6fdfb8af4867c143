package inspector

import (
	"intensity-inspector/internal/display"
	"intensity-inspector/internal/stats"
)

// ChannelAdapter holds the presentation state of one channel: the latest
// snapshot and statistics it was given and its histogram display options. It
// owns no settings. All methods must be called on the UI thread.
type ChannelAdapter struct {
	index  int
	update func(Mutator) (Commit, error)

	settings *display.Settings
	stats    *stats.ChannelStats
	logY     bool
	overlay  string

	settingsUpdates int
	statsUpdates    int
}

func newChannelAdapter(index int, update func(Mutator) (Commit, error)) *ChannelAdapter {
	return &ChannelAdapter{index: index, update: update}
}

func (a *ChannelAdapter) Index() int { return a.index }

// Settings is the latest snapshot delivered to this channel, or nil.
func (a *ChannelAdapter) Settings() *display.Settings { return a.settings }

// Channel is this channel's part of the latest snapshot.
func (a *ChannelAdapter) Channel() display.ChannelSettings {
	if a.settings == nil {
		return display.DefaultChannelSettings()
	}
	return a.settings.Channel(a.index)
}

// Stats returns the latest statistics, or nil when there is no data.
func (a *ChannelAdapter) Stats() *stats.ChannelStats { return a.stats }

func (a *ChannelAdapter) HasData() bool       { return a.stats != nil }
func (a *ChannelAdapter) LogYAxis() bool      { return a.logY }
func (a *ChannelAdapter) OverlayText() string { return a.overlay }

// Updates reports how many snapshots and statistics results were delivered.
func (a *ChannelAdapter) Updates() (settings, stats int) {
	return a.settingsUpdates, a.statsUpdates
}

func (a *ChannelAdapter) SetSettings(s *display.Settings) {
	a.settings = s
	a.settingsUpdates++
}

func (a *ChannelAdapter) SetStats(s *stats.ChannelStats) {
	a.stats = s
	a.statsUpdates++
}

func (a *ChannelAdapter) SetLogYAxis(enabled bool) { a.logY = enabled }

// SetOverlayText sets the text drawn over the histogram; empty clears it.
func (a *ChannelAdapter) SetOverlayText(text string) { a.overlay = text }

// DisplayRange is the intensity range currently applied to the channel: the
// auto range when autostretch is on and statistics exist, else the fixed one.
func (a *ChannelAdapter) DisplayRange() (lo, hi int64) {
	ch := a.Channel()
	if a.settings != nil && a.settings.AutostretchEnabled() && a.stats != nil {
		return a.stats.AutoscaleRange(a.settings.IgnoredPercentile())
	}
	return ch.ScalingMin, ch.ScalingMax
}

// FreezeAutoscale commits the auto range of the latest statistics as the
// channel's fixed range. Without statistics it does nothing.
func (a *ChannelAdapter) FreezeAutoscale() error {
	if a.stats == nil || a.update == nil {
		return nil
	}
	st := *a.stats
	index := a.index
	_, err := a.update(func(s *display.Settings) *display.Settings {
		lo, hi := st.AutoscaleRange(s.IgnoredPercentile())
		ch := s.Channel(index)
		ch.ScalingMin, ch.ScalingMax = lo, hi
		return s.WithChannel(index, ch)
	})
	return err
}
