// Package app wires the simulated viewer, the inspector controller and the
// fyne panel into a desktop application.
package app

import (
	"context"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"intensity-inspector/internal/config"
	"intensity-inspector/internal/gui"
	"intensity-inspector/internal/inspector"
	"intensity-inspector/internal/logger"
	"intensity-inspector/internal/scheduler"
	"intensity-inspector/internal/shutdown"
	"intensity-inspector/internal/viewer"
)

const (
	AppName    = "Intensity Inspector"
	AppID      = "com.intensityinspector.viewer"
	AppVersion = "1.0.0"

	refreshInterval = 200 * time.Millisecond
	metricsInterval = 30 * time.Second
)

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 0xff} }

// Palettes offered in the palette menu.
var Palettes = []inspector.Palette{
	{Label: "Colorblind Friendly", Colors: []color.RGBA{
		rgb(0, 114, 178), rgb(213, 94, 0), rgb(0, 158, 115), rgb(204, 121, 167),
		rgb(240, 228, 66), rgb(86, 180, 233), rgb(230, 159, 0),
	}},
	{Label: "Primary", Colors: []color.RGBA{
		rgb(255, 0, 0), rgb(0, 255, 0), rgb(0, 0, 255),
		rgb(0, 255, 255), rgb(255, 0, 255), rgb(255, 255, 0),
	}},
}

type Application struct {
	cfg     config.Config
	log     logger.Logger
	fyneApp fyne.App
	window  fyne.Window

	viewer   *viewer.Simulated
	ctrl     *inspector.Controller
	panel    *gui.Panel
	shutdown *shutdown.Manager
}

func NewApplication(cfg config.Config, log logger.Logger) (*Application, error) {
	fyneApp := fyneapp.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)
	window.Resize(fyne.NewSize(560, 640))
	window.CenterOnScreen()
	window.SetMaster()

	sim, err := viewer.NewSimulated(viewer.SimulatedConfig{
		Channels:      cfg.Channels,
		Width:         cfg.ImageWidth,
		Height:        cfg.ImageHeight,
		Bins:          cfg.HistogramBins,
		FrameInterval: cfg.FrameInterval,
		BufferSize:    cfg.EventBufferSize,
	}, log)
	if err != nil {
		return nil, err
	}

	ctrl := inspector.NewController(scheduler.FyneExecutor{},
		inspector.WithLogger(log),
		inspector.WithPreferences(fyneApp.Preferences()),
		inspector.WithPalettes(Palettes...),
		inspector.WithMaxRetries(cfg.MaxCASRetries),
		inspector.WithDefaultUpdateRate(cfg.DefaultUpdateRate),
	)

	a := &Application{
		cfg:      cfg,
		log:      log,
		fyneApp:  fyneApp,
		window:   window,
		viewer:   sim,
		ctrl:     ctrl,
		panel:    gui.NewPanel(ctrl, log),
		shutdown: shutdown.NewManager(log, 5*time.Second),
	}

	// Registered in start order; stopped in reverse.
	a.shutdown.Register("fyne app", shutdown.Func(func() { fyne.Do(a.fyneApp.Quit) }))
	a.shutdown.Register("simulated viewer", shutdown.Func(a.viewer.Stop))
	a.shutdown.Register("inspector", shutdown.Func(func() { fyne.Do(a.ctrl.Detach) }))

	log.Info("Application", "initialization complete", map[string]interface{}{
		"version":  AppVersion,
		"dataset":  sim.ID(),
		"channels": cfg.Channels,
	})
	return a, nil
}

// Run blocks until the window is closed or a shutdown signal arrives.
func (a *Application) Run() error {
	ctx := a.shutdown.Context()
	a.shutdown.Listen(context.Background())

	a.window.SetContent(a.panel.GetContainer())
	a.window.SetCloseIntercept(func() {
		a.log.Info("Application", "shutdown requested", nil)
		a.ctrl.Detach()
		// Components may still be posting to this goroutine; stop them off it.
		go a.shutdown.Shutdown()
	})

	a.fyneApp.Lifecycle().SetOnStarted(func() {
		if err := a.ctrl.Attach(a.viewer); err != nil {
			a.log.Error("Application", err, nil)
			go a.shutdown.Shutdown()
			return
		}
		a.viewer.Start(ctx)
		go a.refreshLoop(ctx)
		go a.metricsLoop(ctx)
	})

	a.window.Show()
	a.log.Info("Application", "GUI displayed", nil)
	a.fyneApp.Run()

	a.shutdown.Shutdown()
	return nil
}

func (a *Application) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fyne.Do(a.panel.Refresh)
		}
	}
}

func (a *Application) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := a.ctrl.SchedulerStats()
			b := a.viewer.BufferStats()
			a.log.Debug("Application", "scheduler metrics", map[string]interface{}{
				"submitted":    s.Submitted,
				"coalesced":    s.Coalesced,
				"executed":     s.Executed,
				"pending":      s.Pending,
				"frames":       a.viewer.Frames(),
				"active_bytes": b.ActiveBytes,
			})
		}
	}
}
