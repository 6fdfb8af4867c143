package gui

import (
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/inspector"
	"intensity-inspector/internal/scheduler"
	"intensity-inspector/internal/stats"
	"intensity-inspector/internal/viewer"
)

func newTestPanel(t *testing.T) (*Panel, *inspector.Controller, *scheduler.ManualExecutor, *viewer.Simulated) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	exec := scheduler.NewManualExecutor()
	ctrl := inspector.NewController(exec)

	sim, err := viewer.NewSimulated(viewer.SimulatedConfig{
		Channels: 2, Width: 4, Height: 4, Bins: 8, FrameInterval: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(sim.Stop)

	require.NoError(t, ctrl.Attach(sim))
	exec.RunPending()

	return NewPanel(ctrl, nil), ctrl, exec, sim
}

func TestPanelShowsOneRowPerChannel(t *testing.T) {
	p, ctrl, exec, _ := newTestPanel(t)

	p.Refresh()
	assert.Empty(t, p.RowTexts())

	ctrl.SubmitStatsBatch(&stats.Batch{
		Request: stats.StaticRequest{{Channel: 1}},
		Results: []stats.ChannelStats{{Min: 3, Max: 90, Mean: 40}},
	})
	exec.RunPending()
	p.Refresh()

	rows := p.RowTexts()
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0], "Channel 1")
	assert.Contains(t, rows[0], "no data")
	assert.Contains(t, rows[1], "max 90")

	assert.Equal(t, "1 Hz", p.rate.Selected)
	assert.True(t, p.autostretch.Checked)
}

func TestPanelForwardsUserActions(t *testing.T) {
	p, _, exec, sim := newTestPanel(t)
	p.Refresh()

	p.colorMode.SetSelected(display.ColorModeFire.String())
	assert.Equal(t, display.ColorModeFire, sim.Settings().Current().ColorMode())

	test.Tap(p.autostretch)
	assert.False(t, sim.Settings().Current().AutostretchEnabled())

	p.rate.SetSelected("Never")
	assert.Zero(t, sim.StatsRate())

	exec.RunPending()
	p.Refresh()
	assert.Equal(t, display.ColorModeFire.String(), p.colorMode.Selected)
	assert.Empty(t, p.status.Text)
}

func TestPanelRefreshDoesNotEchoIntoController(t *testing.T) {
	p, ctrl, exec, sim := newTestPanel(t)

	cur := sim.Settings().Current()
	require.True(t, sim.Settings().CompareAndSet(cur, cur.WithROIAutoscale(true)))
	require.Eventually(t, func() bool {
		exec.RunPending()
		return ctrl.Controls().ROIAutoscale
	}, time.Second, time.Millisecond)
	before := sim.Settings().Current()

	p.Refresh()

	assert.True(t, p.roi.Checked)
	assert.Same(t, before, sim.Settings().Current())
	assert.Empty(t, p.status.Text)
}
