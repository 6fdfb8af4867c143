// Package stats defines the statistics batches an image viewer publishes and
// the inspector consumes. Computing them is the publisher's business.
package stats

import (
	"errors"
	"fmt"
)

// ErrImageNotFound is returned when an image reference can no longer be
// resolved, typically because its data source was closed.
var ErrImageNotFound = errors.New("image not found")

// Coords locates one image in a multi-dimensional acquisition.
type Coords struct {
	Channel  int
	Z        int
	Time     int
	Position int
}

// ImageRequest identifies the images a batch was computed from.
type ImageRequest interface {
	ImageCount() int
	// ChannelOf resolves the channel coordinate of image i.
	ChannelOf(i int) (int, error)
}

// StaticRequest is an ImageRequest over coordinates captured at request time.
type StaticRequest []Coords

func (r StaticRequest) ImageCount() int { return len(r) }

func (r StaticRequest) ChannelOf(i int) (int, error) {
	if i < 0 || i >= len(r) {
		return 0, fmt.Errorf("image %d of %d: %w", i, len(r), ErrImageNotFound)
	}
	return r[i].Channel, nil
}

// Batch pairs a request with one result per measured image. A nil *Batch
// means "no data" and clears every channel display.
type Batch struct {
	Request ImageRequest
	Results []ChannelStats
}

// Len is the number of results; zero for a nil batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Results)
}

// ChannelOf resolves the channel of result i.
func (b *Batch) ChannelOf(i int) (int, error) {
	if b == nil || b.Request == nil || i < 0 || i >= len(b.Results) {
		return 0, ErrImageNotFound
	}
	return b.Request.ChannelOf(b.Results[i].ImageIndex)
}
