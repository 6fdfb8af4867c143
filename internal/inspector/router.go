package inspector

import (
	"intensity-inspector/internal/logger"
	"intensity-inspector/internal/stats"
)

// StatsSink receives the statistics routed to one channel; nil means no data.
type StatsSink interface {
	SetStats(s *stats.ChannelStats)
}

// Route delivers to sink i the first result of batch whose image lies in
// channel i, and no data when there is none. A nil or empty batch clears every
// sink. Results for channels outside sinks are ignored, and results whose
// channel cannot be resolved are logged and skipped.
func Route[S StatsSink](batch *stats.Batch, sinks []S, log logger.Logger) {
	channels := make([]int, batch.Len())
	for j := range channels {
		ch, err := batch.ChannelOf(j)
		if err != nil {
			log.Warning("Router", "dropping result with unresolvable channel", map[string]interface{}{
				"result": j,
				"error":  err.Error(),
			})
			ch = -1
		}
		channels[j] = ch
	}

	for i, sink := range sinks {
		var match *stats.ChannelStats
		for j, ch := range channels {
			if ch == i {
				result := batch.Results[j]
				match = &result
				break
			}
		}
		sink.SetStats(match)
	}
}

// maxChannel is the highest resolvable channel referenced by batch, or -1.
func maxChannel(batch *stats.Batch) int {
	highest := -1
	for j := 0; j < batch.Len(); j++ {
		if ch, err := batch.ChannelOf(j); err == nil && ch > highest {
			highest = ch
		}
	}
	return highest
}
