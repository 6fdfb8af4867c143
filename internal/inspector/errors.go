package inspector

import "errors"

var (
	// ErrNilViewer and ErrIncompatibleViewer report a caller defect in Attach.
	ErrNilViewer          = errors.New("inspector: nil viewer")
	ErrIncompatibleViewer = errors.New("inspector: viewer does not publish image statistics")

	// ErrDetached is returned by operations that need an attached viewer.
	ErrDetached = errors.New("inspector: no viewer attached")

	// ErrContention is returned when a settings update kept losing the
	// compare-and-set race.
	ErrContention = errors.New("inspector: settings update contention")

	ErrUnknownRate    = errors.New("inspector: unknown update rate")
	ErrUnknownPalette = errors.New("inspector: unknown palette")
)
