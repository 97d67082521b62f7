package metrics

import (
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// EventType defines the type of event in the simulation
type EventType string

const (
	EventTypeJobSubmitted EventType = "job-submitted"
	EventTypeJobStarted   EventType = "job-started"
	EventTypeJobFinished  EventType = "job-finished"
)

// Event represents a point-in-time job lifecycle event
type Event struct {
	Time        simclock.Time
	Type        EventType
	Job         string
	Node        string
	Utilization float64

	// Running and Waiting count jobs after the event took effect.
	Running   int
	Waiting   int
	Message   string
	IsWarning bool
}

// Sample is a cluster utilization measurement
type Sample struct {
	Time    simclock.Time
	Percent float64
}

// JobRecord collects the lifecycle instants of one job
type JobRecord struct {
	Name        string
	Node        string
	SubmitTime  simclock.Time
	StartTime   simclock.Time
	EndTime     simclock.Time
	WaitingTime simclock.Duration
	Started     bool
	Finished    bool
}
