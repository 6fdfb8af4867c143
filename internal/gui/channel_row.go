package gui

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"intensity-inspector/internal/inspector"
)

type channelRow struct {
	swatch    *canvas.Rectangle
	summary   *widget.Label
	overlay   *widget.Label
	container *fyne.Container
}

func newChannelRow() *channelRow {
	r := &channelRow{
		swatch:  canvas.NewRectangle(color.White),
		summary: widget.NewLabel(""),
		overlay: widget.NewLabel(""),
	}
	r.swatch.SetMinSize(fyne.NewSize(16, 16))
	r.overlay.TextStyle = fyne.TextStyle{Bold: true}
	r.container = container.NewHBox(r.swatch, r.summary, r.overlay)
	return r
}

func (r *channelRow) update(a *inspector.ChannelAdapter) {
	ch := a.Channel()
	r.swatch.FillColor = ch.Color
	r.swatch.Refresh()

	r.summary.SetText(summarize(a))
	r.overlay.SetText(a.OverlayText())
}

func summarize(a *inspector.ChannelAdapter) string {
	name := a.Channel().Name
	if name == "" {
		name = fmt.Sprintf("Channel %d", a.Index()+1)
	}
	lo, hi := a.DisplayRange()
	text := fmt.Sprintf("%s  display %d..%d", name, lo, hi)

	if s := a.Stats(); s != nil {
		text += fmt.Sprintf("  min %d  max %d  mean %.1f", s.Min, s.Max, s.Mean)
	} else {
		text += "  no data"
	}
	if a.LogYAxis() {
		text += "  (log)"
	}
	return text
}
