package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/eventbus"
	"intensity-inspector/internal/stats"
)

func testConfig() SimulatedConfig {
	return SimulatedConfig{
		Channels:      3,
		Width:         16,
		Height:        12,
		Bins:          32,
		FrameInterval: 5 * time.Millisecond,
	}
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]eventbus.Event
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string][]eventbus.Event)}
}

func (r *recorder) handle(e eventbus.Event) {
	r.mu.Lock()
	r.events[e.Type] = append(r.events[e.Type], e)
	r.mu.Unlock()
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[eventType])
}

func (r *recorder) last(eventType string) (eventbus.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.events[eventType]
	if len(evs) == 0 {
		return eventbus.Event{}, false
	}
	return evs[len(evs)-1], true
}

func TestNewSimulatedValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Channels = 0
	_, err := NewSimulated(cfg, nil)
	assert.Error(t, err)
}

func TestSimulatedProducesImagesAndStats(t *testing.T) {
	sim, err := NewSimulated(testConfig(), nil)
	require.NoError(t, err)
	defer sim.Stop()

	var _ StatsPublisher = sim
	require.NotEmpty(t, sim.ID())

	rec := newRecorder()
	sim.RegisterForEvents(eventbus.NewHandlerFunc(rec.handle))
	sim.DataProvider().RegisterForEvents(eventbus.NewHandlerFunc(rec.handle))
	sim.SetStatsRate(0)
	sim.SetStatsRate(-1)
	assert.Zero(t, sim.StatsRate())
	sim.SetStatsRate(1000)

	sim.Start(context.Background())

	require.Eventually(t, func() bool {
		return sim.DataProvider().AxisLength(AxisChannel) == 3 && rec.count(EventStatsChanged) > 3
	}, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, sim.DataProvider().AxisLength("z"))

	batch := sim.CurrentBatch()
	require.NotNil(t, batch)
	assert.Equal(t, 3, batch.Len())
	for i := 0; i < batch.Len(); i++ {
		ch, err := batch.ChannelOf(i)
		require.NoError(t, err)
		assert.Equal(t, i, ch)
		assert.EqualValues(t, 16*12, batch.Results[i].PixelCount)
		assert.Len(t, batch.Results[i].Histogram, 32)
	}

	ev, ok := rec.last(EventNewImage)
	require.True(t, ok)
	img := ev.Data.(NewImage)
	_, err = img.Image.Coords()
	assert.NoError(t, err)

	buffers := sim.BufferStats()
	assert.EqualValues(t, 1, buffers.Allocated)
	assert.Positive(t, buffers.Reused)

	sim.Stop()
	sim.Stop()

	_, err = img.Image.Coords()
	assert.True(t, errors.Is(err, stats.ErrImageNotFound))
}

func TestSimulatedNeverRateSuppressesStats(t *testing.T) {
	sim, err := NewSimulated(testConfig(), nil)
	require.NoError(t, err)
	defer sim.Stop()

	rec := newRecorder()
	sim.RegisterForEvents(eventbus.NewHandlerFunc(rec.handle))
	sim.SetStatsRate(0)
	sim.Start(context.Background())

	require.Eventually(t, func() bool { return sim.Frames() >= 5 }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, rec.count(EventStatsChanged))
	assert.Nil(t, sim.CurrentBatch())
}

func TestSimulatedPublishesSettingsChanges(t *testing.T) {
	sim, err := NewSimulated(testConfig(), nil)
	require.NoError(t, err)
	defer sim.Stop()

	rec := newRecorder()
	h := eventbus.NewHandlerFunc(rec.handle)
	sim.RegisterForEvents(h)

	cur := sim.Settings().Current()
	next := cur.WithColorMode(display.ColorModeFire)
	require.True(t, sim.Settings().CompareAndSet(cur, next))

	require.Eventually(t, func() bool { return rec.count(EventSettingsChanged) == 1 }, time.Second, time.Millisecond)
	ev, _ := rec.last(EventSettingsChanged)
	change := ev.Data.(SettingsChange)
	assert.Same(t, cur, change.Old)
	assert.Same(t, next, change.New)

	sim.UnregisterForEvents(h)
	require.True(t, sim.Settings().CompareAndSet(next, next.WithROIAutoscale(true)))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count(EventSettingsChanged))
}

func TestSimulatedSettingsBurstEndsOnCurrentSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.BufferSize = 1
	sim, err := NewSimulated(cfg, nil)
	require.NoError(t, err)
	defer sim.Stop()

	rec := newRecorder()
	sim.RegisterForEvents(eventbus.NewHandlerFunc(rec.handle))

	store := sim.Settings()
	for i := 0; i < 50; i++ {
		cur := store.Current()
		require.True(t, store.CompareAndSet(cur, cur.WithIgnoredPercentile(float64(i))))
	}
	final := store.Current()

	require.Eventually(t, func() bool {
		ev, ok := rec.last(EventSettingsChanged)
		return ok && ev.Data.(SettingsChange).New == final
	}, time.Second, time.Millisecond)
}

func TestStopWithoutStart(t *testing.T) {
	sim, err := NewSimulated(testConfig(), nil)
	require.NoError(t, err)
	assert.NotPanics(t, sim.Stop)
}
