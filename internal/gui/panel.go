// Package gui renders an inspector.Controller with fyne widgets. Every method
// runs on the fyne main goroutine.
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/inspector"
	"intensity-inspector/internal/logger"
)

// Panel shows the general controls and one row per channel.
type Panel struct {
	ctrl *inspector.Controller
	log  logger.Logger

	colorMode       *widget.Select
	autostretch     *widget.Check
	percentile      *widget.Slider
	percentileLabel *widget.Label
	roi             *widget.Check
	logY            *widget.Check
	rate            *widget.Select
	palette         *widget.Select
	status          *widget.Label

	channels  *fyne.Container
	rows      []*channelRow
	container *fyne.Container

	// syncing is set while Refresh pushes controller state into widgets, so
	// their change callbacks do not echo it back.
	syncing bool
}

func NewPanel(ctrl *inspector.Controller, log logger.Logger) *Panel {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	p := &Panel{ctrl: ctrl, log: log}
	p.setupComponents()
	p.setupLayout()
	return p
}

func (p *Panel) setupComponents() {
	modes := make([]string, len(display.ColorModes))
	for i, m := range display.ColorModes {
		modes[i] = m.String()
	}
	p.colorMode = widget.NewSelect(modes, func(value string) {
		p.apply("color mode", func() error { return p.ctrl.SetColorMode(display.ColorModeFromString(value)) })
	})

	p.autostretch = widget.NewCheck("Autostretch", func(enabled bool) {
		p.apply("autostretch", func() error { return p.ctrl.SetAutostretch(enabled, p.percentile.Value) })
	})

	p.percentileLabel = widget.NewLabel(percentileText(0))
	p.percentile = widget.NewSlider(0, inspector.MaxIgnoredPercentile)
	p.percentile.Step = 0.1
	p.percentile.OnChanged = func(value float64) {
		p.percentileLabel.SetText(percentileText(value))
	}
	p.percentile.OnChangeEnded = func(value float64) {
		p.apply("ignored percentile", func() error { return p.ctrl.SetAutostretch(p.autostretch.Checked, value) })
	}

	p.roi = widget.NewCheck("Use ROI for histograms and autostretch", func(enabled bool) {
		p.apply("ROI autoscale", func() error { return p.ctrl.SetROIAutoscale(enabled) })
	})

	p.logY = widget.NewCheck("Log Y axis", func(enabled bool) {
		if !p.syncing {
			p.ctrl.SetLogYAxis(enabled)
			p.refreshRows()
		}
	})

	rates := make([]string, len(inspector.UpdateRates))
	for i, r := range inspector.UpdateRates {
		rates[i] = r.Label
	}
	p.rate = widget.NewSelect(rates, func(label string) {
		p.apply("update rate", func() error { return p.ctrl.SetUpdateRate(label) })
	})

	p.palette = widget.NewSelect(nil, func(label string) {
		p.apply("palette", func() error { return p.ctrl.ApplyPalette(label) })
	})
	p.palette.PlaceHolder = "Palette"

	p.status = widget.NewLabel("")
	p.channels = container.NewVBox()
}

func (p *Panel) setupLayout() {
	general := container.NewVBox(
		widget.NewLabel("Histograms and Intensity Scaling"),
		container.NewGridWithColumns(2,
			widget.NewLabel("Color mode"), p.colorMode,
			widget.NewLabel("Update rate"), p.rate,
			widget.NewLabel("Palette"), p.palette,
		),
		p.autostretch,
		container.NewBorder(nil, nil, p.percentileLabel, nil, p.percentile),
		p.roi,
		p.logY,
	)

	p.container = container.NewBorder(
		general,
		p.status,
		nil, nil,
		container.NewVScroll(p.channels),
	)
}

func (p *Panel) GetContainer() *fyne.Container {
	return p.container
}

// apply runs a user action and reports its result. Callbacks fired while
// syncing are ignored.
func (p *Panel) apply(action string, fn func() error) {
	if p.syncing {
		return
	}
	if err := fn(); err != nil {
		p.log.Error("Panel", err, map[string]interface{}{"action": action})
		p.status.SetText(fmt.Sprintf("%s: %v", action, err))
		return
	}
	p.status.SetText("")
}

// Refresh pulls the controller state into the widgets.
func (p *Panel) Refresh() {
	c := p.ctrl.Controls()

	p.syncing = true
	p.colorMode.SetSelected(c.ColorMode.String())
	p.autostretch.SetChecked(c.Autostretch)
	p.percentile.SetValue(c.IgnoredPercentile)
	p.percentileLabel.SetText(percentileText(c.IgnoredPercentile))
	p.roi.SetChecked(c.ROIAutoscale)
	p.logY.SetChecked(c.LogYAxis)
	if c.UpdateRate != "" {
		p.rate.SetSelected(c.UpdateRate)
	}
	p.palette.Options = paletteLabels(p.ctrl.Palettes())
	p.palette.Refresh()
	p.syncing = false

	p.refreshRows()
}

func (p *Panel) refreshRows() {
	n := p.ctrl.ChannelCount()
	if n < len(p.rows) {
		p.rows = p.rows[:0]
		p.channels.RemoveAll()
	}
	for len(p.rows) < n {
		row := newChannelRow()
		p.rows = append(p.rows, row)
		p.channels.Add(row.container)
	}
	for i, row := range p.rows {
		if a, ok := p.ctrl.AdapterFor(i); ok {
			row.update(a)
		}
	}
}

// RowTexts returns the summary line of every channel row.
func (p *Panel) RowTexts() []string {
	out := make([]string, len(p.rows))
	for i, row := range p.rows {
		out[i] = row.summary.Text
	}
	return out
}

func percentileText(v float64) string {
	return fmt.Sprintf("Ignore %.1f%%", v)
}

func paletteLabels(palettes []inspector.Palette) []string {
	out := make([]string, len(palettes))
	for i, pal := range palettes {
		out[i] = pal.Label
	}
	return out
}
