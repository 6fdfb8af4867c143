// Package inspector keeps an intensity inspector panel in step with the image
// viewer it is attached to. Settings changes go through an optimistic
// compare-and-set loop, statistics batches are coalesced onto the UI thread
// and routed to per-channel adapters, and the adapter set grows as new
// channels appear.
//
// Threading: Attach, Detach and every method that reads or changes adapters
// run on the UI thread, the goroutine that drains the Executor the Controller
// was built with. UpdateSettings and SubmitStatsBatch may be called from any
// goroutine.
package inspector

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/eventbus"
	"intensity-inspector/internal/logger"
	"intensity-inspector/internal/preferences"
	"intensity-inspector/internal/scheduler"
	"intensity-inspector/internal/stats"
	"intensity-inspector/internal/viewer"
)

// Coalescence classes used by the controller.
const (
	ClassStats    scheduler.Class = "stats.batch"
	ClassSettings scheduler.Class = "settings.fanout"
)

// MaxIgnoredPercentile caps the autostretch ignored percentile.
const MaxIgnoredPercentile = 49.9

// State is the attach lifecycle state.
type State int

const (
	StateDetached State = iota
	StateAttaching
	StateAttached
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controls is the state shown by the general (non per-channel) controls.
type Controls struct {
	ColorMode         display.ColorMode
	Autostretch       bool
	IgnoredPercentile float64
	ROIAutoscale      bool
	LogYAxis          bool
	UpdateRate        string
	ChannelColors     []color.RGBA
}

type Option func(*Controller)

func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

func WithPreferences(prefs preferences.Store) Option {
	return func(c *Controller) {
		if prefs != nil {
			c.prefs = prefs
		}
	}
}

func WithPalettes(palettes ...Palette) Option {
	return func(c *Controller) { c.palettes = append(c.palettes, palettes...) }
}

func WithMaxRetries(n int) Option {
	return func(c *Controller) { c.maxRetries = n }
}

// WithDefaultUpdateRate sets the rate applied on attach when no preference
// has been saved yet.
func WithDefaultUpdateRate(label string) Option {
	return func(c *Controller) { c.defaultRate = label }
}

// binding is everything an attach ties the controller to. A new binding with
// a new generation is created on every attach.
type binding struct {
	gen       uint64
	viewer    viewer.Viewer
	publisher viewer.StatsPublisher
	provider  viewer.DataProvider
	store     display.SettingsStore

	viewerHandler   eventbus.EventHandler
	providerHandler eventbus.EventHandler
}

type Controller struct {
	exec        scheduler.Executor
	pool        *scheduler.Pool
	sync        *Synchronizer
	log         logger.Logger
	prefs       preferences.Store
	palettes    []Palette
	defaultRate string
	maxRetries  int

	mu    sync.Mutex
	gen   uint64
	state State
	bound *binding

	// UI thread only.
	adapters      []*ChannelAdapter
	settings      *display.Settings
	logY          bool
	rateLabel     string
	overlay       string
	customPalette []color.RGBA
}

// NewController returns a detached controller whose UI thread is exec.
func NewController(exec scheduler.Executor, opts ...Option) *Controller {
	c := &Controller{
		exec:        exec,
		log:         logger.NoOpLogger{},
		prefs:       preferences.NewMemory(),
		defaultRate: DefaultUpdateRate,
		maxRetries:  DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = scheduler.NewPool(exec, c.log)
	c.sync = NewSynchronizer(c.maxRetries, c.log, nil)
	return c
}

// Attach binds the controller to v, replacing any previous viewer. Event
// subscriptions are made immediately; reading the channel count, settings,
// statistics and saved update rate happens on the next UI turn, and is
// skipped if the controller has been detached by then.
func (c *Controller) Attach(v viewer.Viewer) error {
	if v == nil {
		return ErrNilViewer
	}
	publisher, ok := v.(viewer.StatsPublisher)
	if !ok {
		return ErrIncompatibleViewer
	}
	store, provider := v.Settings(), v.DataProvider()
	if store == nil || provider == nil {
		return fmt.Errorf("%w: missing settings store or data provider", ErrIncompatibleViewer)
	}

	c.Detach()

	c.mu.Lock()
	c.gen++
	b := &binding{
		gen:       c.gen,
		viewer:    v,
		publisher: publisher,
		provider:  provider,
		store:     store,
	}
	b.viewerHandler = eventbus.NewHandlerFunc(func(e eventbus.Event) { c.onViewerEvent(b.gen, e) })
	b.providerHandler = eventbus.NewHandlerFunc(func(e eventbus.Event) { c.onProviderEvent(b.gen, e) })
	c.bound = b
	c.state = StateAttaching
	c.mu.Unlock()

	v.RegisterForEvents(b.viewerHandler)
	provider.RegisterForEvents(b.providerHandler)

	c.exec.Post(func() { c.setUp(b.gen) })

	c.log.Info("Inspector", "viewer attached", map[string]interface{}{"generation": b.gen})
	return nil
}

// Detach unsubscribes from the viewer and drops every channel adapter. It is
// a no-op when nothing is attached.
func (c *Controller) Detach() {
	c.mu.Lock()
	b := c.bound
	if b == nil {
		c.mu.Unlock()
		return
	}
	c.bound = nil
	c.gen++
	c.state = StateDetached
	c.mu.Unlock()

	b.provider.UnregisterForEvents(b.providerHandler)
	b.viewer.UnregisterForEvents(b.viewerHandler)

	c.adapters = nil
	c.settings = nil

	c.log.Info("Inspector", "viewer detached", map[string]interface{}{"generation": b.gen})
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UpdateSettings applies mutate to the attached viewer's settings and returns
// the resulting snapshot. Safe from any goroutine.
func (c *Controller) UpdateSettings(mutate Mutator) (*display.Settings, error) {
	commit, err := c.update(mutate)
	if err != nil {
		return nil, err
	}
	return commit.New, nil
}

// SubmitStatsBatch schedules batch for routing on the UI thread. A nil batch
// clears every channel. Safe from any goroutine.
func (c *Controller) SubmitStatsBatch(batch *stats.Batch) {
	c.submitStats(c.generation(), batch)
}

func (c *Controller) ChannelCount() int { return len(c.adapters) }

// AdapterFor returns the adapter of channel i.
func (c *Controller) AdapterFor(i int) (*ChannelAdapter, bool) {
	if i < 0 || i >= len(c.adapters) {
		return nil, false
	}
	return c.adapters[i], true
}

func (c *Controller) SetColorMode(mode display.ColorMode) error {
	_, err := c.UpdateSettings(func(s *display.Settings) *display.Settings {
		return s.WithColorMode(mode)
	})
	return err
}

// SetAutostretch enables or disables autostretch with the given ignored
// percentile, clamped to [0, MaxIgnoredPercentile]. Turning it off freezes
// every channel at its current auto range.
func (c *Controller) SetAutostretch(enabled bool, ignoredPercentile float64) error {
	p := ignoredPercentile
	if math.IsNaN(p) || p < 0 {
		p = 0
	}
	p = math.Min(p, MaxIgnoredPercentile)

	_, err := c.UpdateSettings(func(s *display.Settings) *display.Settings {
		return s.WithAutostretch(enabled).WithIgnoredPercentile(p)
	})
	return err
}

func (c *Controller) SetROIAutoscale(enabled bool) error {
	_, err := c.UpdateSettings(func(s *display.Settings) *display.Settings {
		return s.WithROIAutoscale(enabled)
	})
	return err
}

// SetLogYAxis switches every histogram between linear and log counts.
func (c *Controller) SetLogYAxis(enabled bool) {
	c.logY = enabled
	for _, a := range c.adapters {
		a.SetLogYAxis(enabled)
	}
}

// SetUpdateRate applies one of UpdateRates to the viewer and remembers it.
func (c *Controller) SetUpdateRate(label string) error {
	rate, ok := LookupUpdateRate(label)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRate, label)
	}
	b := c.binding()
	if b == nil {
		return ErrDetached
	}
	c.applyUpdateRate(b, rate)
	return nil
}

// ApplyPalette recolors every known channel from the named palette, or from
// the recorded custom palette for CustomPaletteLabel.
func (c *Controller) ApplyPalette(label string) error {
	colors, err := c.paletteColors(label)
	if err != nil {
		return err
	}

	n := len(c.adapters)
	_, err = c.UpdateSettings(func(s *display.Settings) *display.Settings {
		return s.WithChannelColors(colors, max(n, s.ChannelCount()))
	})
	if err != nil {
		return err
	}
	c.prefs.SetString(PrefPalette, label)
	return nil
}

// Palettes lists the palettes offered, plus the custom one once recorded.
func (c *Controller) Palettes() []Palette {
	out := append([]Palette(nil), c.palettes...)
	if len(c.customPalette) > 0 {
		out = append(out, Palette{Label: CustomPaletteLabel, Colors: c.CustomPalette()})
	}
	return out
}

// CustomPalette is the last set of channel colors seen that no known palette
// contains, or nil.
func (c *Controller) CustomPalette() []color.RGBA {
	return append([]color.RGBA(nil), c.customPalette...)
}

func (c *Controller) Controls() Controls {
	s := c.settings
	if s == nil {
		s = display.DefaultSettings()
	}
	return Controls{
		ColorMode:         s.ColorMode().Resolve(),
		Autostretch:       s.AutostretchEnabled(),
		IgnoredPercentile: s.IgnoredPercentile(),
		ROIAutoscale:      s.ROIAutoscaleEnabled(),
		LogYAxis:          c.logY,
		UpdateRate:        c.rateLabel,
		ChannelColors:     s.ChannelColors(),
	}
}

// SchedulerStats exposes the coalescing counters.
func (c *Controller) SchedulerStats() scheduler.PoolStats {
	return c.pool.Stats()
}

func (c *Controller) binding() *binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// current returns the binding if gen is still the attached generation.
func (c *Controller) current(gen uint64) *binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil || c.bound.gen != gen {
		return nil
	}
	return c.bound
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Controller) update(mutate Mutator) (Commit, error) {
	b := c.binding()
	if b == nil {
		return Commit{}, ErrDetached
	}
	commit, err := c.sync.Update(b.store, mutate)
	if err == nil && commit.Changed() {
		c.committed(b.gen, commit)
	}
	return commit, err
}

// committed runs once per successful write, on the writer's goroutine. gen is
// the binding the write went through; a later attach makes both effects no-ops.
func (c *Controller) committed(gen uint64, commit Commit) {
	c.submitFanout(gen)
	if commit.AutostretchTurnedOff() {
		c.exec.Post(func() { c.freezeAll(gen) })
	}
}

func (c *Controller) setUp(gen uint64) {
	b := c.current(gen)
	if b == nil {
		c.log.Debug("Inspector", "skipping setup for stale attach", map[string]interface{}{"generation": gen})
		return
	}

	c.grow(b.provider.AxisLength(viewer.AxisChannel))
	c.applySettings(b.store.Current())
	c.submitStats(gen, b.publisher.CurrentBatch())

	label := c.prefs.StringWithFallback(PrefUpdateRate, c.defaultRate)
	if rate, ok := LookupUpdateRate(label); ok {
		c.applyUpdateRate(b, rate)
	} else {
		c.log.Warning("Inspector", "ignoring unknown saved update rate", map[string]interface{}{"rate": label})
	}

	c.mu.Lock()
	if c.bound == b {
		c.state = StateAttached
	}
	c.mu.Unlock()
}

func (c *Controller) onViewerEvent(gen uint64, e eventbus.Event) {
	switch e.Type {
	case viewer.EventSettingsChanged:
		c.submitFanout(gen)
	case viewer.EventStatsChanged:
		batch, _ := e.Data.(*stats.Batch)
		c.submitStats(gen, batch)
	}
}

func (c *Controller) onProviderEvent(gen uint64, e eventbus.Event) {
	if e.Type != viewer.EventNewImage {
		return
	}
	img, ok := e.Data.(viewer.NewImage)
	if !ok || img.Image == nil {
		return
	}
	coords, err := img.Image.Coords()
	if err != nil {
		c.log.Warning("Inspector", "dropping new image from closed data source", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	c.exec.Post(func() {
		if c.current(gen) == nil {
			return
		}
		c.grow(coords.Channel + 1)
	})
}

// submitFanout schedules pushing the store's current snapshot to every
// adapter. The store is read when the task runs, so the latest commit wins
// regardless of notification order.
func (c *Controller) submitFanout(gen uint64) {
	if c.current(gen) == nil {
		return
	}
	c.pool.Submit(scheduler.Task{
		Class: ClassSettings,
		Run: func() {
			if b := c.current(gen); b != nil {
				c.applySettings(b.store.Current())
			}
		},
	})
}

func (c *Controller) submitStats(gen uint64, batch *stats.Batch) {
	if c.current(gen) == nil {
		return
	}
	c.pool.Submit(scheduler.Task{
		Class: ClassStats,
		Run: func() {
			if c.current(gen) == nil {
				return
			}
			if hi := maxChannel(batch); hi >= len(c.adapters) {
				c.grow(hi + 1)
			}
			Route(batch, c.adapters, c.log)
		},
	})
}

func (c *Controller) freezeAll(gen uint64) {
	if c.current(gen) == nil {
		return
	}
	for _, a := range c.adapters {
		if err := a.FreezeAutoscale(); err != nil {
			c.log.Error("Inspector", err, map[string]interface{}{"channel": a.Index()})
		}
	}
}

// grow adds adapters up to n. It never removes any.
func (c *Controller) grow(n int) {
	if n <= len(c.adapters) {
		return
	}
	for i := len(c.adapters); i < n; i++ {
		a := newChannelAdapter(i, c.update)
		if c.settings != nil {
			a.SetSettings(c.settings)
		}
		a.SetLogYAxis(c.logY)
		a.SetOverlayText(c.overlay)
		c.adapters = append(c.adapters, a)
	}
	c.log.Debug("Inspector", "channel set grown", map[string]interface{}{"channels": n})
}

func (c *Controller) applySettings(s *display.Settings) {
	if s == nil {
		return
	}
	c.settings = s

	if colors := s.ChannelColors(); len(colors) > 0 && len(c.palettes) > 0 && !c.knownColors(colors) {
		c.customPalette = colors
	}
	for _, a := range c.adapters {
		a.SetSettings(s)
	}
}

func (c *Controller) applyUpdateRate(b *binding, rate UpdateRate) {
	b.publisher.SetStatsRate(rate.Hz)
	c.prefs.SetString(PrefUpdateRate, rate.Label)
	c.rateLabel = rate.Label

	c.overlay = ""
	if rate.Hz == 0 {
		c.overlay = OverlayUpdateDisabled
	}
	for _, a := range c.adapters {
		a.SetOverlayText(c.overlay)
	}
}

func (c *Controller) knownColors(colors []color.RGBA) bool {
	for _, p := range c.palettes {
		if p.Contains(colors) {
			return true
		}
	}
	return false
}

func (c *Controller) paletteColors(label string) ([]color.RGBA, error) {
	if label == CustomPaletteLabel {
		if len(c.customPalette) == 0 {
			return nil, fmt.Errorf("%w: no custom palette recorded", ErrUnknownPalette)
		}
		return c.CustomPalette(), nil
	}
	for _, p := range c.palettes {
		if p.Label == label {
			return p.Colors, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, label)
}
