package inspector

import (
	"fmt"

	"intensity-inspector/internal/display"
	"intensity-inspector/internal/logger"
)

// DefaultMaxRetries bounds the compare-and-set loop.
const DefaultMaxRetries = 1000

// Mutator derives a new snapshot from the current one. It may run several
// times per update and must not have side effects.
type Mutator func(*display.Settings) *display.Settings

// Commit describes the outcome of one update. Old and New are the same
// snapshot when the mutator made no effective change.
type Commit struct {
	Old      *display.Settings
	New      *display.Settings
	Attempts int
}

// Changed reports whether the update wrote to the store.
func (c Commit) Changed() bool { return c.Old != c.New }

// AutostretchTurnedOff reports an enabled to disabled autostretch transition.
func (c Commit) AutostretchTurnedOff() bool {
	return c.Changed() && c.Old.AutostretchEnabled() && !c.New.AutostretchEnabled()
}

// Synchronizer applies settings updates with optimistic concurrency: read,
// mutate, compare-and-set, retry on conflict. It holds no settings itself and
// may be used from any goroutine.
type Synchronizer struct {
	maxRetries int
	log        logger.Logger
	onCommit   func(Commit)
}

// NewSynchronizer returns a Synchronizer that calls onCommit once for every
// update that wrote to the store, after the write and outside the retry loop.
func NewSynchronizer(maxRetries int, log logger.Logger, onCommit func(Commit)) *Synchronizer {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = logger.NoOpLogger{}
	}
	return &Synchronizer{maxRetries: maxRetries, log: log, onCommit: onCommit}
}

// Update runs mutate against store until its result is accepted. A result
// equal to the snapshot it was derived from is not written.
func (s *Synchronizer) Update(store display.SettingsStore, mutate Mutator) (Commit, error) {
	if store == nil {
		return Commit{}, ErrDetached
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		old := store.Current()

		var updated *display.Settings
		if mutate != nil {
			updated = mutate(old)
		}
		if updated == nil || updated.Equal(old) {
			return Commit{Old: old, New: old, Attempts: attempt}, nil
		}

		if !store.CompareAndSet(old, updated) {
			continue
		}

		commit := Commit{Old: old, New: updated, Attempts: attempt}
		if attempt > 1 {
			s.log.Debug("Synchronizer", "settings committed after conflicts", map[string]interface{}{
				"attempts": attempt,
			})
		}
		if s.onCommit != nil {
			s.onCommit(commit)
		}
		return commit, nil
	}

	err := fmt.Errorf("%w: gave up after %d attempts", ErrContention, s.maxRetries)
	s.log.Error("Synchronizer", err, nil)
	return Commit{}, err
}
