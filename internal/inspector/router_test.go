package inspector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intensity-inspector/internal/logger"
	"intensity-inspector/internal/stats"
)

type recordingSink struct {
	calls int
	last  *stats.ChannelStats
}

func (r *recordingSink) SetStats(s *stats.ChannelStats) {
	r.calls++
	r.last = s
}

func newSinks(n int) []*recordingSink {
	sinks := make([]*recordingSink, n)
	for i := range sinks {
		sinks[i] = &recordingSink{}
	}
	return sinks
}

func TestRouteMatchesChannelsAndClearsTheRest(t *testing.T) {
	sinks := newSinks(3)
	Route(batchFor(0, 2), sinks, logger.NoOpLogger{})

	for i, s := range sinks {
		assert.Equal(t, 1, s.calls, "sink %d", i)
	}
	require.NotNil(t, sinks[0].last)
	assert.EqualValues(t, 0, sinks[0].last.Min)
	assert.Nil(t, sinks[1].last)
	require.NotNil(t, sinks[2].last)
	assert.EqualValues(t, 200, sinks[2].last.Min)
}

func TestRouteNilAndEmptyBatchClearEverything(t *testing.T) {
	for name, batch := range map[string]*stats.Batch{
		"nil":   nil,
		"empty": {Request: stats.StaticRequest{}},
	} {
		t.Run(name, func(t *testing.T) {
			sinks := newSinks(2)
			for _, s := range sinks {
				s.last = &stats.ChannelStats{}
			}
			Route(batch, sinks, logger.NoOpLogger{})
			for _, s := range sinks {
				assert.Equal(t, 1, s.calls)
				assert.Nil(t, s.last)
			}
		})
	}
}

func TestRouteIgnoresOutOfRangeChannels(t *testing.T) {
	sinks := newSinks(2)
	Route(batchFor(0, 7), sinks, logger.NoOpLogger{})

	require.NotNil(t, sinks[0].last)
	assert.Nil(t, sinks[1].last)
}

func TestRouteFirstMatchWins(t *testing.T) {
	sinks := newSinks(2)
	Route(batchFor(1, 1), sinks, logger.NoOpLogger{})

	require.NotNil(t, sinks[1].last)
	assert.Equal(t, 0, sinks[1].last.ImageIndex)
	assert.Equal(t, 1, sinks[1].calls)
}

type brokenRequest struct{ stats.StaticRequest }

func (r brokenRequest) ChannelOf(i int) (int, error) {
	if i == 0 {
		return 0, errors.New("data provider closed")
	}
	return r.StaticRequest.ChannelOf(i)
}

func TestRouteSkipsUnresolvableResults(t *testing.T) {
	b := batchFor(0, 1)
	b.Request = brokenRequest{b.Request.(stats.StaticRequest)}

	sinks := newSinks(2)
	Route(b, sinks, logger.NoOpLogger{})

	assert.Nil(t, sinks[0].last)
	require.NotNil(t, sinks[1].last)
	assert.EqualValues(t, 100, sinks[1].last.Min)
	assert.Equal(t, 1, maxChannel(b))
}

func TestMaxChannel(t *testing.T) {
	assert.Equal(t, -1, maxChannel(nil))
	assert.Equal(t, 5, maxChannel(batchFor(2, 5, 0)))
}
