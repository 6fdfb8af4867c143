package viewer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/eventbus"
	"intensity-inspector/internal/imagestats"
	"intensity-inspector/internal/logger"
	"intensity-inspector/internal/stats"
)

// SimulatedConfig shapes the synthetic acquisition.
type SimulatedConfig struct {
	Channels      int
	Width         int
	Height        int
	Bins          int
	FrameInterval time.Duration
	BufferSize    int
}

// Simulated is a Viewer and StatsPublisher backed by synthetic frames. Frame
// f carries channels 0 through min(f, Channels)-1, so the channel count grows
// during the first frames the way a live acquisition's does.
type Simulated struct {
	id       string
	cfg      SimulatedConfig
	log      logger.Logger
	store    *display.AtomicStore
	bus      *eventbus.Bus
	provider *simulatedProvider
	buffers  *imagestats.FramePool
	unwatch  func()

	rateBits atomic.Uint64
	current  atomic.Pointer[stats.Batch]
	frames   atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewSimulated(cfg SimulatedConfig, log logger.Logger) (*Simulated, error) {
	if cfg.Channels <= 0 || cfg.Width <= 0 || cfg.Height <= 0 || cfg.Bins <= 0 || cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("invalid simulated viewer config: %+v", cfg)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if log == nil {
		log = logger.NoOpLogger{}
	}

	bus := eventbus.NewBus(cfg.BufferSize, log)
	bus.KeepLatest(EventSettingsChanged)
	bus.KeepLatest(EventStatsChanged)
	s := &Simulated{
		id:       uuid.NewString(),
		cfg:      cfg,
		log:      log,
		store:    display.NewAtomicStore(nil),
		bus:      bus,
		provider: &simulatedProvider{bus: bus},
		buffers:  imagestats.NewFramePool(cfg.Channels),
	}
	s.SetStatsRate(1)
	s.unwatch = s.store.Watch(func(old, updated *display.Settings) {
		s.bus.Publish(eventbus.Event{
			Type:      EventSettingsChanged,
			Timestamp: time.Now(),
			Data:      SettingsChange{Old: old, New: updated},
		})
	})
	return s, nil
}

func (s *Simulated) ID() string { return s.id }

// Frames reports how many frames have been produced.
func (s *Simulated) Frames() uint64 { return s.frames.Load() }

func (s *Simulated) Settings() display.SettingsStore { return s.store }

// Store is Settings with its concrete type, for callers that want to Watch it.
func (s *Simulated) Store() *display.AtomicStore { return s.store }

func (s *Simulated) DataProvider() DataProvider { return s.provider }

func (s *Simulated) RegisterForEvents(h eventbus.EventHandler) {
	s.bus.Subscribe(EventSettingsChanged, h)
	s.bus.Subscribe(EventStatsChanged, h)
}

func (s *Simulated) UnregisterForEvents(h eventbus.EventHandler) {
	s.bus.Unsubscribe(EventSettingsChanged, h)
	s.bus.Unsubscribe(EventStatsChanged, h)
}

func (s *Simulated) CurrentBatch() *stats.Batch { return s.current.Load() }

func (s *Simulated) SetStatsRate(hz float64) {
	if math.IsNaN(hz) || hz < 0 {
		hz = 0
	}
	s.rateBits.Store(math.Float64bits(hz))
}

func (s *Simulated) StatsRate() float64 {
	return math.Float64frombits(s.rateBits.Load())
}

// Start launches the frame producer. Calling it again has no effect.
func (s *Simulated) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.wg.Add(1)
		go s.produce(ctx)

		s.log.Info("SimulatedViewer", "producer started", map[string]interface{}{
			"dataset":  s.id,
			"channels": s.cfg.Channels,
			"interval": s.cfg.FrameInterval.String(),
		})
	})
}

// Stop halts the producer and closes the data provider. Image references
// handed out earlier stop resolving. Idempotent.
func (s *Simulated) Stop() {
	s.stopOnce.Do(func() {
		s.startOnce.Do(func() {})
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		s.provider.closed.Store(true)
		s.unwatch()
		s.bus.Shutdown()
		s.buffers.Close()

		buffers := s.buffers.Stats()
		s.log.Info("SimulatedViewer", "producer stopped", map[string]interface{}{
			"dataset":        s.id,
			"frames":         s.frames.Load(),
			"dropped":        s.bus.Dropped(),
			"mats_allocated": buffers.Allocated,
			"mats_reused":    buffers.Reused,
		})
	})
}

func (s *Simulated) produce(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	var lastStats time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame := int(s.frames.Add(1))
			due := s.statsDue(now, lastStats)
			if due {
				lastStats = now
			}
			s.emitFrame(frame, due)
		}
	}
}

func (s *Simulated) statsDue(now, last time.Time) bool {
	hz := s.StatsRate()
	switch {
	case hz == 0:
		return false
	case math.IsInf(hz, 1):
		return true
	default:
		return now.Sub(last) >= time.Duration(float64(time.Second)/hz)
	}
}

func (s *Simulated) emitFrame(frame int, computeStats bool) {
	channels := min(frame, s.cfg.Channels)

	request := make(stats.StaticRequest, 0, channels)
	results := make([]stats.ChannelStats, 0, channels)
	for ch := 0; ch < channels; ch++ {
		coords := stats.Coords{Channel: ch, Time: frame}
		s.provider.observe(ch)
		s.bus.Publish(eventbus.Event{
			Type:      EventNewImage,
			Timestamp: time.Now(),
			Data:      NewImage{Image: simulatedImage{provider: s.provider, coords: coords}},
		})

		if !computeStats {
			continue
		}
		cs, err := s.measure(ch, frame, len(request))
		if err != nil {
			s.log.Error("SimulatedViewer", err, map[string]interface{}{"channel": ch, "frame": frame})
			continue
		}
		request = append(request, coords)
		results = append(results, cs)
	}

	if !computeStats {
		return
	}
	batch := &stats.Batch{Request: request, Results: results}
	s.current.Store(batch)
	s.bus.Publish(eventbus.Event{Type: EventStatsChanged, Timestamp: time.Now(), Data: batch})
}

func (s *Simulated) measure(ch, frame, imageIndex int) (stats.ChannelStats, error) {
	mat, err := s.buffers.Get(s.cfg.Height, s.cfg.Width, gocv.MatTypeCV8UC1)
	if err != nil {
		return stats.ChannelStats{}, err
	}
	defer s.buffers.Put(mat)

	imagestats.Fill(&mat, channelMean(ch, frame), 12)
	return imagestats.Compute(mat, imageIndex, s.cfg.Bins, 256)
}

// BufferStats reports frame buffer reuse.
func (s *Simulated) BufferStats() imagestats.PoolStats { return s.buffers.Stats() }

// channelMean drifts each channel's brightness slowly around its own level.
func channelMean(ch, frame int) float64 {
	base := 40 + 45*float64(ch%4)
	return base + 25*math.Sin(float64(frame)/15+float64(ch))
}

type simulatedProvider struct {
	bus      *eventbus.Bus
	channels atomic.Int64
	closed   atomic.Bool
}

func (p *simulatedProvider) RegisterForEvents(h eventbus.EventHandler) {
	p.bus.Subscribe(EventNewImage, h)
}

func (p *simulatedProvider) UnregisterForEvents(h eventbus.EventHandler) {
	p.bus.Unsubscribe(EventNewImage, h)
}

func (p *simulatedProvider) AxisLength(axis Axis) int {
	if axis != AxisChannel {
		return 0
	}
	return int(p.channels.Load())
}

func (p *simulatedProvider) observe(ch int) {
	for {
		cur := p.channels.Load()
		if int64(ch) < cur || p.channels.CompareAndSwap(cur, int64(ch)+1) {
			return
		}
	}
}

type simulatedImage struct {
	provider *simulatedProvider
	coords   stats.Coords
}

func (i simulatedImage) Coords() (stats.Coords, error) {
	if i.provider.closed.Load() {
		return stats.Coords{}, fmt.Errorf("channel %d frame %d: %w", i.coords.Channel, i.coords.Time, stats.ErrImageNotFound)
	}
	return i.coords, nil
}
