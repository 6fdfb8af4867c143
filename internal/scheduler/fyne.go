package scheduler

import (
	"fyne.io/fyne/v2"
)

// FyneExecutor runs posted functions on the fyne event thread.
type FyneExecutor struct{}

func (FyneExecutor) Post(fn func()) {
	fyne.Do(fn)
}
