package viewer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/inspector"
	"intensity-inspector/internal/preferences"
	"intensity-inspector/internal/scheduler"
	"intensity-inspector/internal/viewer"
)

func TestInspectorFollowsSimulatedViewer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := scheduler.NewLoopExecutor(nil)
	require.NoError(t, exec.Start(ctx))
	defer exec.Stop()

	sim, err := viewer.NewSimulated(viewer.SimulatedConfig{
		Channels:      4,
		Width:         32,
		Height:        32,
		Bins:          64,
		FrameInterval: 2 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	defer sim.Stop()

	prefs := preferences.NewMemory()
	prefs.SetString(inspector.PrefUpdateRate, "Every Displayed Image")
	ctrl := inspector.NewController(exec, inspector.WithPreferences(prefs))

	var attachErr error
	require.True(t, exec.Invoke(func() { attachErr = ctrl.Attach(sim) }))
	require.NoError(t, attachErr)
	sim.Start(ctx)

	ready := func() bool {
		ok := false
		exec.Invoke(func() {
			if ctrl.ChannelCount() != 4 {
				return
			}
			for i := 0; i < 4; i++ {
				a, _ := ctrl.AdapterFor(i)
				if !a.HasData() {
					return
				}
			}
			ok = true
		})
		return ok
	}
	require.Eventually(t, ready, 5*time.Second, 10*time.Millisecond)

	_, err = ctrl.UpdateSettings(func(s *display.Settings) *display.Settings {
		return s.WithColorMode(display.ColorModeRedHot)
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var mode display.ColorMode
		exec.Invoke(func() { mode = ctrl.Controls().ColorMode })
		return mode == display.ColorModeRedHot
	}, 5*time.Second, 10*time.Millisecond)

	exec.Invoke(ctrl.Detach)
	var count int
	exec.Invoke(func() { count = ctrl.ChannelCount() })
	assert.Zero(t, count)
	assert.Equal(t, inspector.StateDetached, ctrl.State())
}
