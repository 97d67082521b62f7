package simulation

import (
	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// TimePoint represents the cluster state at a specific instant
type TimePoint struct {
	Time        simclock.Time
	Running     int
	Waiting     int
	Utilization float64
}

// TimePoints samples the event log every step units over [0, until]. Each
// point reflects every event at or before its instant.
func TimePoints(events []metrics.Event, until simclock.Time, step simclock.Duration) []TimePoint {
	if len(events) == 0 {
		return nil
	}
	if step <= 0 {
		step = 1
	}

	var points []TimePoint
	var current TimePoint
	eventIndex := 0
	for t := simclock.Time(0); t <= until; t += simclock.Time(step) {
		// Process all events up to the current instant
		for eventIndex < len(events) && events[eventIndex].Time <= t {
			event := events[eventIndex]
			current.Running = event.Running
			current.Waiting = event.Waiting
			current.Utilization = event.Utilization
			eventIndex++
		}
		current.Time = t
		points = append(points, current)
	}
	return points
}

// TimePoints samples the run's event log so that a chart of the given width
// covers the whole makespan.
func (e *Engine) TimePoints(width int) []TimePoint {
	step := simclock.Duration(1)
	if width > 0 && int64(e.makespan) > int64(width) {
		step = simclock.Duration((int64(e.makespan) + int64(width) - 1) / int64(width))
	}
	return TimePoints(e.recorder.Events(), e.makespan, step)
}
